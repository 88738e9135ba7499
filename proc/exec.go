package proc

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"vimix/defs"
	"vimix/kalloc"
	"vimix/limits"
	"vimix/spinlock"
	"vimix/util"
	"vimix/vm"
)

// Exec replaces p's address space with the program encoded in elfData,
// per spec.md 4.7: parse the ELF header, map each PT_LOAD segment
// page-by-page into a freshly built page table, append a guard page and
// a fixed-size stack, push argv onto that stack with 16-byte alignment
// (the RISC-V calling-convention requirement spec.md 6 names), and only
// then atomically swap the new page table and size into p -- so a
// failure at any step before that leaves p's old image intact and
// running, matching exec(2)'s all-or-nothing contract.
//
// There is no third-party ELF-parsing library in reach here, so this
// leans on the standard library's debug/elf, which is built exactly for
// this narrow, self-contained job.
func Exec(hart spinlock.HartID, alloc *kalloc.Allocator, p *Proc_t, elfData []byte, argv []string) defs.Err_t {
	if len(argv) > limits.MaxExecArgs {
		return -defs.EOTHER
	}

	f, err := elf.NewFile(bytes.NewReader(elfData))
	if err != nil {
		return -defs.EOTHER
	}
	defer f.Close()
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return -defs.EOTHER
	}

	pt, ok := vm.New(alloc)
	if !ok {
		return -defs.ENOMEM
	}
	as := vm.NewAddressSpace(pt)

	var sz uintptr
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		if err := loadSegment(alloc, pt, prog); err != 0 {
			as.PT.Free(sz)
			return err
		}
		end := uintptr(prog.Vaddr + prog.Memsz)
		if end > sz {
			sz = end
		}
	}
	sz = util.Roundup(sz, vm.PGSIZE)

	sz += vm.PGSIZE // guard page, left unmapped
	stackTop := sz + limits.UserMaxStackSize
	stackLo := stackTop - vm.PGSIZE // only the top page is mapped eagerly
	newSz, aerr := pt.Alloc(stackLo, stackTop, vm.PTE_R|vm.PTE_W)
	if aerr != 0 {
		as.PT.Free(sz)
		return aerr
	}
	as.Sz = newSz
	sp := stackTop

	sp, argvBase, perr := pushArgv(as, stackLo, sp, argv)
	if perr != 0 {
		as.PT.Free(newSz)
		return perr
	}

	p.AS.Lock()
	p.AS.PT.Free(p.AS.Sz)
	p.AS.PT = pt
	p.AS.Sz = as.Sz
	p.AS.Unlock()
	p.StackLo = stackLo
	p.StackHi = stackTop

	p.Tf.Epc = f.Entry
	p.Tf.Sp = uint64(sp)
	p.Tf.A0 = uint64(len(argv))
	p.Tf.A1 = uint64(argvBase)
	return 0
}

// loadSegment copies one PT_LOAD program header's file bytes into
// freshly allocated, page-aligned user pages (zero-filling the portion
// of the final page beyond Filesz, per the BSS convention ELF uses).
func loadSegment(alloc *kalloc.Allocator, pt *vm.PageTable, prog *elf.Prog) defs.Err_t {
	base := util.Rounddown(uintptr(prog.Vaddr), vm.PGSIZE)
	end := util.Roundup(uintptr(prog.Vaddr+prog.Memsz), vm.PGSIZE)
	perm := vm.PTE_U | vm.PTE_R
	if prog.Flags&elf.PF_W != 0 {
		perm |= vm.PTE_W
	}
	if prog.Flags&elf.PF_X != 0 {
		perm |= vm.PTE_X
	}

	data := make([]byte, prog.Filesz)
	if _, err := prog.ReadAt(data, 0); err != nil {
		return -defs.EOTHER
	}

	for va := base; va < end; va += vm.PGSIZE {
		pa, ok := alloc.Alloc()
		if !ok {
			return -defs.ENOMEM
		}
		if err := pt.MapPage(va, pa, perm); err != 0 {
			alloc.Free(pa)
			return err
		}
		page := alloc.Page(pa)
		for i := range page {
			page[i] = 0
		}
		fileOff := int64(va) - int64(prog.Vaddr)
		for i := 0; i < len(page); i++ {
			srcIdx := fileOff + int64(i)
			if srcIdx < 0 || srcIdx >= int64(len(data)) {
				continue
			}
			page[i] = data[srcIdx]
		}
	}
	return 0
}

// pushArgv writes argv's strings and a NUL-terminated pointer vector
// onto the new stack below sp, 16-byte aligning the final stack
// pointer per the RISC-V ABI spec.md 6 requires callees observe.
func pushArgv(as *vm.AddressSpace, stackBase, sp uintptr, argv []string) (uintptr, uintptr, defs.Err_t) {
	ptrs := make([]uint64, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		s := argv[i]
		sp -= uintptr(len(s) + 1)
		sp &^= 0x7
		if sp < stackBase {
			return 0, 0, -defs.ENOMEM
		}
		buf := append([]byte(s), 0)
		if err := as.CopyOut(sp, buf); err != 0 {
			return 0, 0, err
		}
		ptrs[i] = uint64(sp)
	}

	sp -= uintptr(len(ptrs)+1) * 8
	sp &^= 0xf
	if sp < stackBase {
		return 0, 0, -defs.ENOMEM
	}
	argvBase := sp
	for i, pv := range ptrs {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], pv)
		if err := as.CopyOut(sp+uintptr(i)*8, b[:]); err != 0 {
			return 0, 0, err
		}
	}
	var zero [8]byte
	if err := as.CopyOut(sp+uintptr(len(ptrs))*8, zero[:]); err != 0 {
		return 0, 0, err
	}
	return sp, argvBase, 0
}
