// Package stat mirrors the fstat(2) syscall's on-the-wire struct, per
// original_source/kernel/include/kernel/stat.h, adapted to this repository's
// encoding/binary convention in place of the teacher's unsafe.Pointer cast
// (stat/stat.go's Bytes method) since nothing else here reaches for unsafe.
package stat

import "encoding/binary"

// st_mode file-type bits, matching original_source's S_IFMT family.
const (
	IFMT  = 0170000
	IFREG = 0100000
	IFBLK = 0060000
	IFDIR = 0040000
	IFCHR = 0020000
	IFIFO = 0010000
)

// Size is the encoded byte length of Stat_t, matching the C struct's field
// widths (dev_t/ino_t/mode_t/size_t as 64-bit, nlink as 16-bit).
const Size = 8 + 8 + 8 + 2 + 8 + 8 + 8 + 8

// Stat_t mirrors struct stat: device, inode number, mode, link count,
// device number (for char/block specials), size, block size, block count.
type Stat_t struct {
	Dev     uint64
	Ino     uint64
	Mode    uint64
	Nlink   int16
	Rdev    uint64
	Size    uint64
	Blksize uint64
	Blocks  uint64
}

// Bytes encodes st into the on-the-wire layout fstat() copies out to user
// memory.
func (st *Stat_t) Bytes() []byte {
	b := make([]byte, Size)
	binary.LittleEndian.PutUint64(b[0:8], st.Dev)
	binary.LittleEndian.PutUint64(b[8:16], st.Ino)
	binary.LittleEndian.PutUint64(b[16:24], st.Mode)
	binary.LittleEndian.PutUint16(b[24:26], uint16(st.Nlink))
	binary.LittleEndian.PutUint64(b[26:34], st.Rdev)
	binary.LittleEndian.PutUint64(b[34:42], st.Size)
	binary.LittleEndian.PutUint64(b[42:50], st.Blksize)
	binary.LittleEndian.PutUint64(b[50:58], st.Blocks)
	return b
}
