package proc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"vimix/kalloc"
	"vimix/vm"
)

// buildMinimalELF hand-assembles the smallest valid ELF64/RISCV
// executable with a single PT_LOAD segment carrying payload at vaddr,
// entry point vaddr. There is no ecosystem helper in reach for
// synthesizing one, so the bytes are laid out directly per the ELF64
// header/program-header field order debug/elf itself decodes.
func buildMinimalELF(vaddr uint64, payload []byte) []byte {
	var buf bytes.Buffer

	ident := [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}
	buf.Write(ident[:])
	binary.Write(&buf, binary.LittleEndian, uint16(2))   // e_type = ET_EXEC
	binary.Write(&buf, binary.LittleEndian, uint16(243)) // e_machine = EM_RISCV
	binary.Write(&buf, binary.LittleEndian, uint32(1))   // e_version
	binary.Write(&buf, binary.LittleEndian, vaddr)        // e_entry
	binary.Write(&buf, binary.LittleEndian, uint64(64))  // e_phoff
	binary.Write(&buf, binary.LittleEndian, uint64(0))   // e_shoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))   // e_flags
	binary.Write(&buf, binary.LittleEndian, uint16(64))  // e_ehsize
	binary.Write(&buf, binary.LittleEndian, uint16(56))  // e_phentsize
	binary.Write(&buf, binary.LittleEndian, uint16(1))   // e_phnum
	binary.Write(&buf, binary.LittleEndian, uint16(0))   // e_shentsize
	binary.Write(&buf, binary.LittleEndian, uint16(0))   // e_shnum
	binary.Write(&buf, binary.LittleEndian, uint16(0))   // e_shstrndx

	const phOff = 120
	binary.Write(&buf, binary.LittleEndian, uint32(1)) // p_type = PT_LOAD
	binary.Write(&buf, binary.LittleEndian, uint32(5)) // p_flags = R|X
	binary.Write(&buf, binary.LittleEndian, uint64(phOff))
	binary.Write(&buf, binary.LittleEndian, vaddr)
	binary.Write(&buf, binary.LittleEndian, vaddr)
	binary.Write(&buf, binary.LittleEndian, uint64(len(payload)))
	binary.Write(&buf, binary.LittleEndian, uint64(len(payload)))
	binary.Write(&buf, binary.LittleEndian, uint64(0x1000))

	buf.Write(payload)
	return buf.Bytes()
}

func newTestProc(t *testing.T, alloc *kalloc.Allocator) *Proc_t {
	t.Helper()
	pt, ok := vm.New(alloc)
	require.True(t, ok)
	return &Proc_t{mu: testMutex(), AS: vm.NewAddressSpace(pt), Tf: &vm.Trapframe{}}
}

func TestExecLoadsEntryAndArgv(t *testing.T) {
	alloc := kalloc.New(4096, false)
	payload := bytes.Repeat([]byte{0x13, 0x00, 0x00, 0x00}, 4) // a few RISC-V nops
	img := buildMinimalELF(0x1000, payload)

	p := newTestProc(t, alloc)
	err := Exec(hart0, alloc, p, img, []string{"echo", "hi"})
	require.Zero(t, err)
	require.Equal(t, uint64(0x1000), p.Tf.Epc)
	require.Equal(t, uint64(2), p.Tf.A0)
	require.NotZero(t, p.Tf.Sp)
	require.NotZero(t, p.StackLo)
	require.Equal(t, p.StackHi, p.StackLo+vm.PGSIZE)
}

func TestExecRejectsTooManyArgs(t *testing.T) {
	alloc := kalloc.New(4096, false)
	img := buildMinimalELF(0x1000, []byte{0x13, 0, 0, 0})
	p := newTestProc(t, alloc)

	argv := make([]string, 64)
	for i := range argv {
		argv[i] = "x"
	}
	err := Exec(hart0, alloc, p, img, argv)
	require.NotZero(t, err)
}
