package stat

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytesEncodesFieldsAtFixedOffsets(t *testing.T) {
	st := &Stat_t{
		Dev:     1,
		Ino:     2,
		Mode:    IFREG,
		Nlink:   3,
		Rdev:    0,
		Size:    4096,
		Blksize: 512,
		Blocks:  8,
	}

	b := st.Bytes()
	require.Len(t, b, Size)
	require.Equal(t, st.Dev, binary.LittleEndian.Uint64(b[0:8]))
	require.Equal(t, st.Ino, binary.LittleEndian.Uint64(b[8:16]))
	require.Equal(t, st.Mode, binary.LittleEndian.Uint64(b[16:24]))
	require.Equal(t, uint16(st.Nlink), binary.LittleEndian.Uint16(b[24:26]))
	require.Equal(t, st.Rdev, binary.LittleEndian.Uint64(b[26:34]))
	require.Equal(t, st.Size, binary.LittleEndian.Uint64(b[34:42]))
	require.Equal(t, st.Blksize, binary.LittleEndian.Uint64(b[42:50]))
	require.Equal(t, st.Blocks, binary.LittleEndian.Uint64(b[50:58]))
}

func TestIFMTMasksOutFileTypeBits(t *testing.T) {
	require.Equal(t, uint64(IFREG), uint64(IFREG)&IFMT)
	require.Equal(t, uint64(IFDIR), uint64(IFDIR)&IFMT)
}
