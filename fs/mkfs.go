package fs

import (
	"github.com/google/uuid"

	"vimix/bio"
	"vimix/log"
	"vimix/spinlock"
	"vimix/util"
)

// MkfsLayout computes a simple fixed layout: [boot(1) | super(1) |
// log(nlog) | inodes | bitmap | data], per spec.md 4.6's ordering.
func MkfsLayout(format Format, totalBlocks, nlog, ninodes uint32) *Superblock {
	sb := &Superblock{Format: format, Size: totalBlocks, NLog: nlog, NInodes: ninodes}
	if format == VimixFS {
		sb.Magic = MagicVimixFS
	} else {
		sb.Magic = MagicXV6FS
	}
	sb.LogStart = 2
	sb.InodeStart = sb.LogStart + nlog
	inodesPerBlock := BlockSize / uint32(diskInodeSize(format))
	ninodeBlocks := util.Roundup(ninodes, inodesPerBlock) / inodesPerBlock
	sb.BmapStart = sb.InodeStart + ninodeBlocks
	nbmapBlocks := util.Roundup(totalBlocks, BlockSize*8) / (BlockSize * 8)
	sb.DataStart = sb.BmapStart + nbmapBlocks
	sb.NBlocks = totalBlocks - sb.DataStart
	sb.UUID = [16]byte(uuid.New())
	return sb
}

// Mkfs formats a fresh disk image in place: writes the superblock,
// zeroes the inode and bitmap regions, marks the metadata blocks
// (everything before DataStart) as in-use in the bitmap, and creates
// the root directory inode (inum 1) with "." and ".." entries.
// Grounded on the teacher's mkfs/mkfs.go counterpart in spirit (a
// one-shot formatting pass run by a `cmd/mkfs` tool), rewritten against
// this package's Superblock/Inode/log types instead of biscuit's
// direct byte-slice disk image writer.
func Mkfs(hart spinlock.HartID, cache *bio.Cache, dev int, sb *Superblock) *Filesystem {
	WriteSuperblock(hart, cache, dev, sb)

	zero := make([]byte, BlockSize)
	for b := sb.LogStart; b < sb.DataStart; b++ {
		bp, err := cache.Read(hart, dev, uint64(b))
		if err != nil {
			panic(err)
		}
		copy(bp.Data[:], zero)
		if err := cache.Write(bp); err != nil {
			panic(err)
		}
		cache.Release(hart, bp)
	}
	for b := uint32(0); b < sb.DataStart; b++ {
		markUsed(hart, cache, dev, sb, b)
	}

	l := log.Open(cache, dev, uint64(sb.LogStart), uint64(sb.NLog))
	fsys := Open(dev, sb, cache, l, 64)

	l.Begin(hart)
	root, errc := fsys.Alloc(hart, TypeDir)
	if errc != 0 || root.Inum != 1 {
		panic("fs: mkfs: root inode must be inum 1")
	}
	root.Lock(hart, fsys)
	root.Nlink = 1
	fsys.Update(hart, root)
	if err := fsys.DirLink(hart, root, ".", root.Inum); err != 0 {
		panic(err)
	}
	if err := fsys.DirLink(hart, root, "..", root.Inum); err != 0 {
		panic(err)
	}
	root.Unlock(hart)
	fsys.Put(hart, root)
	l.End(hart)

	return fsys
}

func markUsed(hart spinlock.HartID, cache *bio.Cache, dev int, sb *Superblock, block uint32) {
	bp, err := cache.Read(hart, dev, uint64(sb.BBlock(block)))
	if err != nil {
		panic(err)
	}
	bi := block % (BlockSize * 8)
	bp.Data[bi/8] |= 1 << (bi % 8)
	if err := cache.Write(bp); err != nil {
		panic(err)
	}
	cache.Release(hart, bp)
}
