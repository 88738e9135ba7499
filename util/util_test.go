package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMinMax(t *testing.T) {
	require.Equal(t, 3, Min(3, 7))
	require.Equal(t, 7, Min(7, 3))
	require.Equal(t, 7, Max(3, 7))
	require.Equal(t, 7, Max(7, 3))
}

func TestRounddown(t *testing.T) {
	require.Equal(t, 4096, Rounddown(4097, 4096))
	require.Equal(t, 4096, Rounddown(4096, 4096))
	require.Equal(t, 0, Rounddown(4095, 4096))
}

func TestRoundup(t *testing.T) {
	require.Equal(t, 8192, Roundup(4097, 4096))
	require.Equal(t, 4096, Roundup(4096, 4096))
	require.Equal(t, uint32(4096), Roundup(uint32(1), uint32(4096)))
}
