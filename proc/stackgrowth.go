package proc

import (
	"vimix/defs"
	"vimix/kalloc"
	"vimix/limits"
	"vimix/vm"
)

// HandleStackFault implements spec.md 8's stack-growth testable
// property: a fault at addr grows the user stack by one page when
// addr lands within one page below the current stack bottom, so a
// deep recursive call that needs one more frame than is currently
// mapped succeeds instead of faulting. A fault anywhere else in the
// unmapped gap between the heap and the stack is not a stack-growth
// fault and is reported back to the caller to kill the process,
// leaving the rest of the kernel running (spec.md 7's propagation
// policy).
func (p *Proc_t) HandleStackFault(alloc *kalloc.Allocator, addr uintptr) defs.Err_t {
	if p.StackLo == 0 {
		return -defs.EFAULT
	}
	if addr < p.StackLo-vm.PGSIZE || addr >= p.StackLo {
		return -defs.EFAULT
	}
	if p.StackHi-(p.StackLo-vm.PGSIZE) > limits.UserMaxStackSize {
		return -defs.EFAULT
	}

	pa, ok := alloc.Alloc()
	if !ok {
		return -defs.ENOMEM
	}
	newLo := p.StackLo - vm.PGSIZE
	p.AS.Lock()
	err := p.AS.PT.MapPage(newLo, pa, vm.PTE_U|vm.PTE_R|vm.PTE_W)
	p.AS.Unlock()
	if err != 0 {
		alloc.Free(pa)
		return err
	}
	p.StackLo = newLo
	return 0
}
