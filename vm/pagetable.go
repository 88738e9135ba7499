package vm

import (
	"encoding/binary"
	"fmt"

	"vimix/defs"
	"vimix/kalloc"
	"vimix/util"
)

// PageTable is a handle to the root page of a multi-level Sv39-style
// page table. The table's pages live in a kalloc.Allocator, exactly as
// any other physical page; a PageTable only remembers the root's frame
// number and the allocator it was carved from.
type PageTable struct {
	alloc *kalloc.Allocator
	root  kalloc.Pa_t
}

// New allocates a fresh, zeroed page table root.
func New(alloc *kalloc.Allocator) (*PageTable, bool) {
	pa, ok := alloc.Alloc()
	if !ok {
		return nil, false
	}
	return &PageTable{alloc: alloc, root: pa}, true
}

// Root returns the physical page backing the table's root, for
// installing into a CPU/trapframe.
func (pt *PageTable) Root() kalloc.Pa_t { return pt.root }

func (pt *PageTable) readPTE(pg kalloc.Pa_t, idx uintptr) PTE {
	page := pt.alloc.Page(pg)
	return PTE(binary.LittleEndian.Uint64(page[idx*8 : idx*8+8]))
}

func (pt *PageTable) writePTE(pg kalloc.Pa_t, idx uintptr, v PTE) {
	page := pt.alloc.Page(pg)
	binary.LittleEndian.PutUint64(page[idx*8:idx*8+8], uint64(v))
}

// Walk returns a pointer-like (page, index) location for the leaf PTE
// mapping va, allocating intermediate levels on demand when alloc is
// true. Mirrors spec.md 4.3's "Walk" description: iterate levels
// top-to-leaf, installing a fresh zeroed page at each non-leaf miss.
func (pt *PageTable) Walk(va uintptr, alloc bool) (page kalloc.Pa_t, idx uintptr, ok bool) {
	if va >= MAXVA {
		panic("vm: walk of out-of-range va")
	}
	cur := pt.root
	for level := MAXLEVELS - 1; level > 0; level-- {
		i := PXindex(level, va)
		pte := pt.readPTE(cur, i)
		if pte.Valid() {
			cur = pte2pa(pte)
			continue
		}
		if !alloc {
			return 0, 0, false
		}
		npa, got := pt.alloc.Alloc()
		if !got {
			return 0, 0, false
		}
		pt.writePTE(cur, i, pa2pte(npa)|PTE_V)
		cur = npa
	}
	return cur, PXindex(0, va), true
}

// MapPage installs a leaf PTE mapping va to pa with the given flags,
// allocating intermediate page-table levels as needed.
func (pt *PageTable) MapPage(va uintptr, pa kalloc.Pa_t, perm PTE) defs.Err_t {
	if va%PGSIZE != 0 {
		panic("vm: misaligned va")
	}
	page, idx, ok := pt.Walk(va, true)
	if !ok {
		return -defs.ENOMEM
	}
	if pt.readPTE(page, idx).Valid() {
		panic(fmt.Sprintf("vm: remap of already-mapped va %#x", va))
	}
	pt.writePTE(page, idx, pa2pte(pa)|perm|PTE_V)
	return 0
}

// Lookup returns the physical page mapped at va, or ok=false if
// unmapped.
func (pt *PageTable) Lookup(va uintptr) (kalloc.Pa_t, PTE, bool) {
	page, idx, ok := pt.Walk(va, false)
	if !ok {
		return 0, 0, false
	}
	pte := pt.readPTE(page, idx)
	if !pte.Valid() {
		return 0, 0, false
	}
	return pte2pa(pte), pte.flags(), true
}

// Unmap clears npages leaf PTEs starting at va, optionally freeing the
// underlying physical frames back to the allocator.
func (pt *PageTable) Unmap(va uintptr, npages int, freePages bool) {
	if va%PGSIZE != 0 {
		panic("vm: misaligned unmap va")
	}
	for i := 0; i < npages; i++ {
		a := va + uintptr(i)*PGSIZE
		page, idx, ok := pt.Walk(a, false)
		if !ok {
			continue
		}
		pte := pt.readPTE(page, idx)
		if !pte.Valid() {
			continue
		}
		if freePages {
			pt.alloc.Free(pte2pa(pte))
		}
		pt.writePTE(page, idx, 0)
	}
}

// Alloc grows the mapped range [oldsz, newsz) with freshly allocated,
// zeroed pages carrying perm, per spec.md's uvm_alloc. Returns newsz as
// given (the mapped pages cover it rounded up to a page) or oldsz and an
// error; on allocation failure
// already-installed pages in this call are unwound.
func (pt *PageTable) Alloc(oldsz, newsz uintptr, perm PTE) (uintptr, defs.Err_t) {
	if newsz < oldsz {
		return oldsz, 0
	}
	first := util.Roundup(oldsz, PGSIZE)
	for a := first; a < newsz; a += PGSIZE {
		pa, ok := pt.alloc.Alloc()
		if !ok {
			pt.Unmap(first, int((a-first)/PGSIZE), true)
			return oldsz, -defs.ENOMEM
		}
		if err := pt.MapPage(a, pa, perm|PTE_U); err != 0 {
			pt.alloc.Free(pa)
			pt.Unmap(first, int((a-first)/PGSIZE), true)
			return oldsz, err
		}
	}
	return newsz, 0
}

// Dealloc shrinks the mapped range from oldsz down to newsz, freeing
// the now-unmapped pages.
func (pt *PageTable) Dealloc(oldsz, newsz uintptr) uintptr {
	if newsz >= oldsz {
		return oldsz
	}
	first := util.Roundup(newsz, PGSIZE)
	last := util.Roundup(oldsz, PGSIZE)
	npages := int((last - first) / PGSIZE)
	if npages > 0 {
		pt.Unmap(first, npages, true)
	}
	return newsz
}

// Copy clones every mapped page in [0, sz) from pt into dst, failing
// atomically (undoing partial work) on any allocation error -- spec.md
// 4.3's uvm_copy / 4.7's fork requirement that parent and child share
// identical contents at every mapped address immediately after fork.
func (pt *PageTable) Copy(dst *PageTable, sz uintptr) defs.Err_t {
	mapped := make([]uintptr, 0, sz/PGSIZE)
	for va := uintptr(0); va < sz; va += PGSIZE {
		pa, perm, ok := pt.Lookup(va)
		if !ok {
			continue
		}
		npa, got := dst.alloc.Alloc()
		if !got {
			dst.Unmap(0, 0, false)
			for _, v := range mapped {
				dst.Unmap(v, 1, true)
			}
			return -defs.ENOMEM
		}
		*dst.alloc.Page(npa) = *pt.alloc.Page(pa)
		if err := dst.MapPage(va, npa, perm); err != 0 {
			dst.alloc.Free(npa)
			for _, v := range mapped {
				dst.Unmap(v, 1, true)
			}
			return err
		}
		mapped = append(mapped, va)
	}
	return 0
}

// Free releases every mapped leaf page in [0, sz) and then the page
// table's own intermediate pages and root.
func (pt *PageTable) Free(sz uintptr) {
	pt.Unmap(0, int(util.Roundup(sz, PGSIZE)/PGSIZE), true)
	pt.freeWalk(pt.root, MAXLEVELS-1)
}

func (pt *PageTable) freeWalk(pg kalloc.Pa_t, level int) {
	if level == 0 {
		pt.alloc.Free(pg)
		return
	}
	for i := uintptr(0); i < PTESPERPG; i++ {
		pte := pt.readPTE(pg, i)
		if pte.Valid() {
			pt.freeWalk(pte2pa(pte), level-1)
		}
	}
	pt.alloc.Free(pg)
}
