package proc

import (
	"vimix/defs"
	"vimix/kalloc"
	"vimix/spinlock"
	"vimix/vm"
)

// Boot allocates the first process-table slot (the root init process
// every orphan is later reparented to on exit), execs elfData into it,
// and records it via SetRoot. This is the one process-table slot
// created outside Fork, mirroring spec.md 4.7's userinit bootstrap.
func Boot(hart spinlock.HartID, alloc *kalloc.Allocator, name string, elfData []byte, argv []string) (*Proc_t, defs.Err_t) {
	p, err := System.alloc()
	if err != 0 {
		return nil, err
	}

	pt, ok := vm.New(alloc)
	if !ok {
		System.free(p)
		return nil, -defs.ENOMEM
	}
	p.AS = vm.NewAddressSpace(pt)
	p.Tf = &vm.Trapframe{}
	p.Name = name

	if err := Exec(hart, alloc, p, elfData, argv); err != 0 {
		p.AS.Free()
		System.free(p)
		return nil, err
	}

	p.mu.Acquire(hart)
	p.state = Runnable
	p.mu.Release(hart)

	SetRoot(p)
	return p, 0
}
