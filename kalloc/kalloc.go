// Package kalloc implements the physical page allocator: a fixed-size
// pool of PGSIZE pages, threaded into a free list through the page's
// own storage, guarded by a single process-wide sync.Mutex. Grounded on
// biscuit's mem.Physmem_t (mem/mem.go), adapted per spec.md's
// source-pattern remapping note: instead of real physical addresses
// obtained from a baremetal runtime hook (biscuit's runtime.Get_phys()),
// pages are slots in a preallocated Go slice and a Pa_t is the slot
// index -- an "index-keyed" redesign of the intrusive free list that
// needs no unsafe pointer arithmetic.
package kalloc

import (
	"fmt"
	"sync"
)

// PGSHIFT/PGSIZE describe the fixed page size: 4 KiB, per spec.md Data
// Model.
const (
	PGSHIFT = 12
	PGSIZE  = 1 << PGSHIFT
)

// Pa_t is an opaque physical page handle: the index of the page's slot
// in the allocator's backing array. It is never a real address.
type Pa_t uint32

// NoPage is the invalid page handle (all bits set; slot 0 is a real page).
const NoPage Pa_t = ^Pa_t(0)

// debugFill is the sentinel byte pattern used to mark freed pages in
// debug builds, exposing use-after-free.
const debugFill = 0xcc

// Allocator owns a fixed pool of physical pages.
type Allocator struct {
	mu      sync.Mutex
	pages   [][PGSIZE]byte
	next    []uint32 // free-list successor per slot
	head    uint32   // index of first free slot, or sentinel
	free    int
	debug   bool
}

const sentinel = ^uint32(0)

// New allocates npages pages of backing storage and threads them onto
// the free list.
func New(npages int, debug bool) *Allocator {
	a := &Allocator{
		pages: make([][PGSIZE]byte, npages),
		next:  make([]uint32, npages),
		debug: debug,
	}
	a.head = sentinel
	for i := npages - 1; i >= 0; i-- {
		if debug {
			for j := range a.pages[i] {
				a.pages[i][j] = debugFill
			}
		}
		a.next[i] = a.head
		a.head = uint32(i)
	}
	a.free = npages
	return a
}

// Alloc returns a fresh page (zeroed) and its handle, or ok=false if
// the pool is exhausted. O(1) under the allocator lock.
func (a *Allocator) Alloc() (pa Pa_t, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.head == sentinel {
		return NoPage, false
	}
	idx := a.head
	a.head = a.next[idx]
	a.free--
	for i := range a.pages[idx] {
		a.pages[idx][i] = 0
	}
	return Pa_t(idx), true
}

// Free returns pa to the free list, filling it with a sentinel pattern
// in debug builds.
func (a *Allocator) Free(pa Pa_t) {
	a.mu.Lock()
	defer a.mu.Unlock()
	idx := uint32(pa)
	if int(idx) >= len(a.pages) {
		panic(fmt.Sprintf("kalloc: free of out-of-range page %d", pa))
	}
	if a.debug {
		for i := range a.pages[idx] {
			a.pages[idx][i] = debugFill
		}
	}
	a.next[idx] = a.head
	a.head = idx
	a.free++
}

// Page returns a mutable view of the backing bytes for pa. Analogous to
// biscuit's Physmem.Dmap: the "direct map" of a physical page into
// kernel-accessible memory, without any unsafe pointer cast since the
// backing store already lives in the Go heap.
func (a *Allocator) Page(pa Pa_t) *[PGSIZE]byte {
	return &a.pages[pa]
}

// Free_count reports the number of pages currently on the free list.
func (a *Allocator) Free_count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.free
}

// Total reports the total page pool size.
func (a *Allocator) Total() int {
	return len(a.pages)
}
