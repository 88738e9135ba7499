package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vimix/kalloc"
)

func newTestPageTable(t *testing.T, npages int) (*kalloc.Allocator, *PageTable) {
	alloc := kalloc.New(npages, false)
	pt, ok := New(alloc)
	require.True(t, ok)
	return alloc, pt
}

func TestMapPageThenLookupRoundtrips(t *testing.T) {
	alloc, pt := newTestPageTable(t, 8)
	pa, ok := alloc.Alloc()
	require.True(t, ok)

	require.Zero(t, pt.MapPage(0, pa, PTE_R|PTE_W|PTE_U))

	got, perm, ok := pt.Lookup(0)
	require.True(t, ok)
	require.Equal(t, pa, got)
	require.NotZero(t, perm&PTE_R)
	require.NotZero(t, perm&PTE_W)
}

func TestLookupOfUnmappedVaFails(t *testing.T) {
	_, pt := newTestPageTable(t, 8)
	_, _, ok := pt.Lookup(PGSIZE)
	require.False(t, ok)
}

func TestMapPageOfAlreadyMappedVaPanics(t *testing.T) {
	alloc, pt := newTestPageTable(t, 8)
	pa, _ := alloc.Alloc()
	require.Zero(t, pt.MapPage(0, pa, PTE_R))

	pa2, _ := alloc.Alloc()
	require.Panics(t, func() {
		pt.MapPage(0, pa2, PTE_R)
	})
}

func TestUnmapFreesPageWhenRequested(t *testing.T) {
	alloc, pt := newTestPageTable(t, 4) // root + data page + two intermediate levels
	pa, _ := alloc.Alloc()
	pt.MapPage(0, pa, PTE_R|PTE_W)
	require.Equal(t, 0, alloc.Free_count())

	pt.Unmap(0, 1, true)
	require.Equal(t, 1, alloc.Free_count())
	_, _, ok := pt.Lookup(0)
	require.False(t, ok)
}

func TestAllocGrowsMappedRangeWithZeroedPages(t *testing.T) {
	_, pt := newTestPageTable(t, 8)
	sz, err := pt.Alloc(0, 3*PGSIZE, PTE_R|PTE_W)
	require.Zero(t, err)
	require.Equal(t, uintptr(3*PGSIZE), sz)

	for va := uintptr(0); va < sz; va += PGSIZE {
		_, _, ok := pt.Lookup(va)
		require.True(t, ok)
	}
}

func TestAllocUnwindsOnExhaustion(t *testing.T) {
	_, pt := newTestPageTable(t, 2) // root page already consumed one slot
	_, err := pt.Alloc(0, 4*PGSIZE, PTE_R|PTE_W)
	require.NotZero(t, err)

	// every page from this failed call must have been unmapped again
	for va := uintptr(0); va < 4*PGSIZE; va += PGSIZE {
		_, _, ok := pt.Lookup(va)
		require.False(t, ok)
	}
}

func TestDeallocShrinksAndFreesAboveNewSize(t *testing.T) {
	alloc, pt := newTestPageTable(t, 8)
	sz, _ := pt.Alloc(0, 3*PGSIZE, PTE_R|PTE_W)
	freeBefore := alloc.Free_count()

	newSz := pt.Dealloc(sz, PGSIZE)
	require.Equal(t, uintptr(PGSIZE), newSz)
	require.Greater(t, alloc.Free_count(), freeBefore)

	_, _, ok := pt.Lookup(0)
	require.True(t, ok)
	_, _, ok = pt.Lookup(2 * PGSIZE)
	require.False(t, ok)
}

func TestCopyDuplicatesContentsIntoFreshTable(t *testing.T) {
	srcAlloc, src := newTestPageTable(t, 8)
	dstAlloc, dst := newTestPageTable(t, 8)

	sz, err := src.Alloc(0, PGSIZE, PTE_R|PTE_W)
	require.Zero(t, err)
	pa, _, _ := src.Lookup(0)
	srcAlloc.Page(pa)[0] = 0x42

	require.Zero(t, src.Copy(dst, sz))

	dpa, _, ok := dst.Lookup(0)
	require.True(t, ok)
	require.Equal(t, byte(0x42), dstAlloc.Page(dpa)[0])
	require.NotEqual(t, pa, dpa, "fork must not share the same physical page")
}
