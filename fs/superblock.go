package fs

import (
	"encoding/binary"

	"vimix/bio"
	"vimix/spinlock"
)

// superblockBlock is the fixed block holding the on-disk superblock,
// per spec.md 4.6's layout: [boot(1) | super(1) | log | inodes | bitmap
// | data].
const superblockBlock = 1

// EncodeSuperblock serializes sb into one BLOCK_SIZE buffer so a
// freshly formatted image can be closed and reopened by a separate
// process (cmd/mkfs writes it; cmd/vimixfs-fuse reads it back).
func EncodeSuperblock(sb *Superblock) [BlockSize]byte {
	var buf [BlockSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(sb.Format))
	binary.LittleEndian.PutUint32(buf[4:8], sb.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], sb.Size)
	binary.LittleEndian.PutUint32(buf[12:16], sb.NBlocks)
	binary.LittleEndian.PutUint32(buf[16:20], sb.NInodes)
	binary.LittleEndian.PutUint32(buf[20:24], sb.NLog)
	binary.LittleEndian.PutUint32(buf[24:28], sb.LogStart)
	binary.LittleEndian.PutUint32(buf[28:32], sb.InodeStart)
	binary.LittleEndian.PutUint32(buf[32:36], sb.BmapStart)
	binary.LittleEndian.PutUint32(buf[36:40], sb.DataStart)
	copy(buf[40:56], sb.UUID[:])
	return buf
}

// DecodeSuperblock is EncodeSuperblock's inverse.
func DecodeSuperblock(buf []byte) *Superblock {
	sb := &Superblock{
		Format:     Format(binary.LittleEndian.Uint32(buf[0:4])),
		Magic:      binary.LittleEndian.Uint32(buf[4:8]),
		Size:       binary.LittleEndian.Uint32(buf[8:12]),
		NBlocks:    binary.LittleEndian.Uint32(buf[12:16]),
		NInodes:    binary.LittleEndian.Uint32(buf[16:20]),
		NLog:       binary.LittleEndian.Uint32(buf[20:24]),
		LogStart:   binary.LittleEndian.Uint32(buf[24:28]),
		InodeStart: binary.LittleEndian.Uint32(buf[28:32]),
		BmapStart:  binary.LittleEndian.Uint32(buf[32:36]),
		DataStart:  binary.LittleEndian.Uint32(buf[36:40]),
	}
	copy(sb.UUID[:], buf[40:56])
	return sb
}

// WriteSuperblock persists sb to its fixed block. Not part of a log
// transaction: the superblock is written once, before the log exists.
func WriteSuperblock(hart spinlock.HartID, cache *bio.Cache, dev int, sb *Superblock) {
	bp, err := cache.Read(hart, dev, superblockBlock)
	if err != nil {
		panic(err)
	}
	buf := EncodeSuperblock(sb)
	copy(bp.Data[:], buf[:])
	if err := cache.Write(bp); err != nil {
		panic(err)
	}
	cache.Release(hart, bp)
}

// ReadSuperblock loads the superblock from dev's fixed block, for
// reopening an already-formatted image (spec.md 4.6's mount path).
func ReadSuperblock(hart spinlock.HartID, cache *bio.Cache, dev int) *Superblock {
	bp, err := cache.Read(hart, dev, superblockBlock)
	if err != nil {
		panic(err)
	}
	sb := DecodeSuperblock(bp.Data[:])
	cache.Release(hart, bp)
	return sb
}
