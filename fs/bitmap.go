package fs

import (
	"vimix/bio"
	"vimix/log"
	"vimix/spinlock"
)

// BlockSize is the on-disk block size shared with the buffer cache.
const BlockSize = bio.BlockSize

// balloc scans the bitmap starting at block 0 for the first free data
// block, marks it in-use, zeroes it, and returns its block number (0
// if the filesystem is full). Grounded on
// original_source/kernel/fs/vimixfs/bmap.c's block_alloc_init.
func balloc(hart spinlock.HartID, cache *bio.Cache, l *log.Log, dev int, sb *Superblock) uint32 {
	for b := uint32(0); b < sb.Size; b += BlockSize * 8 {
		bp, err := cache.Read(hart, dev, uint64(sb.BBlock(b)))
		if err != nil {
			panic(err)
		}
		for bi := uint32(0); bi < BlockSize*8 && b+bi < sb.Size; bi++ {
			m := byte(1 << (bi % 8))
			if bp.Data[bi/8]&m == 0 {
				bp.Data[bi/8] |= m
				l.Write(hart, bp)
				cache.Release(hart, bp)
				zeroBlock(hart, cache, l, dev, b+bi)
				return b + bi
			}
		}
		cache.Release(hart, bp)
	}
	return 0
}

func zeroBlock(hart spinlock.HartID, cache *bio.Cache, l *log.Log, dev int, blockno uint32) {
	bp, err := cache.Read(hart, dev, uint64(blockno))
	if err != nil {
		panic(err)
	}
	bp.Data = [bio.BlockSize]byte{}
	l.Write(hart, bp)
	cache.Release(hart, bp)
}

// bfree clears the bit for block in the bitmap. Grounded on
// bmap.c's block_free; panics on double-free, matching the source's
// DEBUG_EXTRA_PANIC check.
func bfree(hart spinlock.HartID, cache *bio.Cache, l *log.Log, dev int, sb *Superblock, block uint32) {
	bp, err := cache.Read(hart, dev, uint64(sb.BBlock(block)))
	if err != nil {
		panic(err)
	}
	bi := block % (BlockSize * 8)
	m := byte(1 << (bi % 8))
	if bp.Data[bi/8]&m == 0 {
		panic("fs: freeing already-free block")
	}
	bp.Data[bi/8] &^= m
	l.Write(hart, bp)
	cache.Release(hart, bp)
}
