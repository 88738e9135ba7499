package kalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocZeroesAndTracksFreeCount(t *testing.T) {
	a := New(4, false)
	require.Equal(t, 4, a.Total())
	require.Equal(t, 4, a.Free_count())

	pa, ok := a.Alloc()
	require.True(t, ok)
	require.Equal(t, 3, a.Free_count())

	page := a.Page(pa)
	for _, b := range page {
		require.Zero(t, b)
	}
}

func TestAllocExhaustionReturnsNotOk(t *testing.T) {
	a := New(2, false)
	_, ok1 := a.Alloc()
	_, ok2 := a.Alloc()
	require.True(t, ok1)
	require.True(t, ok2)

	pa, ok := a.Alloc()
	require.False(t, ok)
	require.Equal(t, NoPage, pa)
}

func TestFreeReturnsPageToFreeListForReuse(t *testing.T) {
	a := New(1, false)
	pa, ok := a.Alloc()
	require.True(t, ok)
	require.Zero(t, a.Free_count())

	a.Free(pa)
	require.Equal(t, 1, a.Free_count())

	pa2, ok := a.Alloc()
	require.True(t, ok)
	require.Equal(t, pa, pa2)
}

func TestFreeOfOutOfRangePagePanics(t *testing.T) {
	a := New(1, false)
	require.Panics(t, func() {
		a.Free(Pa_t(99))
	})
}

func TestDebugModeFillsFreedPagesWithSentinel(t *testing.T) {
	a := New(1, true)
	pa, ok := a.Alloc()
	require.True(t, ok)
	a.Free(pa)

	page := a.Page(pa)
	for _, b := range page {
		require.Equal(t, byte(debugFill), b)
	}
}

func TestWritesToOnePageDoNotLeakIntoAnother(t *testing.T) {
	a := New(2, false)
	pa1, _ := a.Alloc()
	pa2, _ := a.Alloc()

	a.Page(pa1)[0] = 0xab
	require.Zero(t, a.Page(pa2)[0])
}
