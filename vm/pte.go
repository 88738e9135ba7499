// Package vm implements per-process virtual memory: Sv39-style
// multi-level page tables, the trapframe/trampoline convention, and
// the uvm_* operations spec.md 4.3 names. Grounded on
// original_source/kernel/arch/riscv/mm/pte.h (PTE flag layout,
// PA2PTE/PXSHIFT encoding) and the teacher's vm/as.go (the shape of an
// address-space type owning a lock plus a page-table root, and of
// Userdmap8/Userwriten/Userstr/K2user/User2k as the cross-address-space
// copy primitives) -- without the teacher's x86 copy-on-write machinery,
// which spec.md's fork semantics (uvm_copy clones all mapped pages) do
// not require.
package vm

import "vimix/kalloc"

// PTE flag bits, identical in meaning and position to
// original_source/kernel/arch/riscv/mm/pte.h.
const (
	PTE_V = 1 << 0 // valid
	PTE_R = 1 << 1 // readable
	PTE_W = 1 << 2 // writeable
	PTE_X = 1 << 3 // executable
	PTE_U = 1 << 4 // user accessible
	PTE_G = 1 << 5 // global
	PTE_A = 1 << 6 // accessed
	PTE_D = 1 << 7 // dirty
)

const PTE_RW = PTE_R | PTE_W

// Sv39 geometry: three 9-bit levels over 4 KiB pages.
const (
	PGSHIFT    = kalloc.PGSHIFT
	PGSIZE     = kalloc.PGSIZE
	PGOFFSET   = PGSIZE - 1
	PTIDXBITS  = 9
	PTIDXMASK  = (1 << PTIDXBITS) - 1
	MAXLEVELS  = 3
	PTESPERPG  = PGSIZE / 8
	TRAMPOLINE = MAXVA - PGSIZE
	TRAPFRAME  = TRAMPOLINE - PGSIZE
	MAXVA      = 1 << (9 + 9 + 9 + 12 - 1)
)

// PTE is one page-table entry: a kalloc.Pa_t page-frame number (when the
// entry is valid) shifted into the upper bits, ORed with flag bits in
// the low 10 bits -- mirroring PA2PTE/PTE_GET_PA in pte.h, except the
// "physical address" here is a kalloc.Pa_t slot index rather than a
// real machine address.
type PTE uint64

// PXshift returns the bit offset of the page-table index for level.
func PXshift(level int) uint {
	return uint(PGSHIFT + PTIDXBITS*level)
}

// PXindex extracts the page-table index for level out of a virtual
// address.
func PXindex(level int, va uintptr) uintptr {
	return (va >> PXshift(level)) & PTIDXMASK
}

func pte2pa(pte PTE) kalloc.Pa_t {
	return kalloc.Pa_t(pte >> 10)
}

func pa2pte(pa kalloc.Pa_t) PTE {
	return PTE(pa) << 10
}

func (pte PTE) flags() PTE {
	return pte & 0x3ff
}

// Valid reports whether the PV bit is set.
func (pte PTE) Valid() bool { return pte&PTE_V != 0 }

// Leaf reports whether pte is a leaf (maps a page) rather than pointing
// at the next page-table level.
func (pte PTE) Leaf() bool { return pte&(PTE_RW|PTE_X) != 0 }
