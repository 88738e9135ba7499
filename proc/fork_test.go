package proc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vimix/fd"
	"vimix/kalloc"
	"vimix/vm"
)

func TestForkDuplicatesAddressSpaceAndFiles(t *testing.T) {
	alloc := kalloc.New(64, false)
	pt, ok := vm.New(alloc)
	require.True(t, ok)
	as := vm.NewAddressSpace(pt)
	require.Zero(t, as.Grow(vm.PGSIZE))
	require.Zero(t, as.CopyOut(0, []byte("hi")))

	parent := &Proc_t{mu: testMutex(), Pid: 1, Name: "parent", AS: as, Tf: &vm.Trapframe{A0: 99}}
	parent.Files[0] = &fd.Fd_t{File: fd.NewPipeFile(fd.NewPipe(), true, false), Perms: fd.FD_READ}

	childPid, err := Fork(alloc, parent)
	require.Zero(t, err)
	require.NotEqual(t, parent.Pid, childPid)

	child := System.Find(childPid)
	require.NotNil(t, child)
	require.Equal(t, parent.Name, child.Name)
	require.Equal(t, Runnable, child.State())
	require.Equal(t, uint64(0), child.Tf.A0) // child sees 0, not parent's a0
	require.NotNil(t, child.Files[0])
	require.Same(t, parent.Files[0].File, child.Files[0].File)

	buf := make([]byte, 2)
	require.Zero(t, child.AS.CopyIn(0, buf))
	require.Equal(t, "hi", string(buf))

	System.free(child)
}

// TestForkExhaustionRespectsProcessLimit exercises spec.md 8's testable
// property 3: fork must fail once the table has no free slot, rather
// than silently overrunning MaxProcesses.
func TestForkExhaustionRespectsProcessLimit(t *testing.T) {
	saved := System
	System = NewSched(2)
	defer func() { System = saved }()

	alloc := kalloc.New(64, false)
	pt, _ := vm.New(alloc)
	parent := &Proc_t{mu: testMutex(), Pid: 1, AS: vm.NewAddressSpace(pt), Tf: &vm.Trapframe{}}

	_, err1 := Fork(alloc, parent)
	require.Zero(t, err1)
	_, err2 := Fork(alloc, parent)
	require.Zero(t, err2)
	_, err3 := Fork(alloc, parent)
	require.NotZero(t, err3)
}
