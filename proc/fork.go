package proc

import (
	"context"

	"golang.org/x/sync/semaphore"

	"vimix/defs"
	"vimix/fd"
	"vimix/kalloc"
	"vimix/limits"
	"vimix/vm"
)

// System is the single scheduler instance a process's fork/exit/wait
// calls register against. A real kernel would thread this through a
// per-hart CPU struct; a package-level handle is enough here since
// there is exactly one process table per running vimix instance.
var System = NewSched(limits.MaxProcesses)

// forkCopies bounds how many page-table copies (Fork's dominant cost)
// run at once to MaxCPUs: without it, a fork bomb's goroutines would
// all hit the allocator's single lock simultaneously, serializing
// anyway but after every goroutine has already committed to a full
// table walk. Acquiring this first turns that pile-up into an orderly
// queue instead.
var forkCopies = semaphore.NewWeighted(int64(limits.MaxCPUs))

// Fork creates a child of parent: a fresh address space with parent's
// page table and size copied in (every mapped page is eagerly copied to
// a fresh physical page, as in xv6; there is no copy-on-write sharing),
// a duplicate trapframe with a
// zeroed return value for the child, duplicated file descriptors, and a
// shared cwd path. Returns the child's pid to the parent's caller; the
// child's own trapframe already carries 0 in a0 so its eventual resumed
// execution sees fork()'s child-side return value.
func Fork(alloc *kalloc.Allocator, parent *Proc_t) (int, defs.Err_t) {
	child, err := System.alloc()
	if err != 0 {
		return 0, err
	}

	pt, ok := vm.New(alloc)
	if !ok {
		System.free(child)
		return 0, -defs.ENOMEM
	}
	child.AS = vm.NewAddressSpace(pt)
	forkCopies.Acquire(context.Background(), 1)
	err2 := parent.AS.Fork(child.AS)
	forkCopies.Release(1)
	if err2 != 0 {
		child.AS.PT.Free(0)
		System.free(child)
		return 0, err2
	}

	tf := *parent.Tf
	tf.A0 = 0
	child.Tf = &tf

	for i, f := range parent.Files {
		if f != nil {
			child.Files[i] = fd.Copyfd(0, f)
		}
	}
	child.Cwd = parent.Cwd
	child.Name = parent.Name

	child.mu.Acquire(0)
	child.Parent = parent
	child.state = Runnable
	child.mu.Release(0)

	return child.Pid, 0
}
