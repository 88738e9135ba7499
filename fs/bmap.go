package fs

import (
	"encoding/binary"

	"vimix/spinlock"
)

// Bmap returns the on-disk block address of the blockno'th logical
// block of ip, allocating it (and any indirect/double-indirect blocks
// needed to address it) through the bitmap if it does not yet exist.
// Returns 0 if the filesystem is out of space. Grounded line-for-line
// on original_source/kernel/fs/vimixfs/bmap.c's
// bmap_get_block_address/bmap_from_block/bmap_from_block_range, which
// already generalizes to both direct-only (xv6fs) and double-indirect
// (vimixfs) layouts depending on how many direct slots precede the
// indirect pointer.
func (fsys *Filesystem) Bmap(hart spinlock.HartID, ip *Inode, blockno uint32) uint32 {
	nd := uint32(nDirect(fsys.SB.Format))

	if blockno < nd {
		return fsys.bmapDirect(hart, ip.Addrs, blockno)
	}
	blockno -= nd

	if blockno < addrsPerBlock {
		if ip.Addrs[nd] == 0 {
			ip.Addrs[nd] = balloc(hart, fsys.cache, fsys.log, fsys.Dev, fsys.SB)
		}
		return fsys.bmapIndirect(hart, ip.Addrs[nd], blockno)
	}
	blockno -= addrsPerBlock

	if fsys.SB.Format == VimixFS && blockno < addrsPerBlock*addrsPerBlock {
		if ip.Addrs[nd+1] == 0 {
			ip.Addrs[nd+1] = balloc(hart, fsys.cache, fsys.log, fsys.Dev, fsys.SB)
		}
		idx0 := blockno / addrsPerBlock
		idx1 := blockno % addrsPerBlock
		ib := fsys.bmapIndirect(hart, ip.Addrs[nd+1], idx0)
		return fsys.bmapIndirect(hart, ib, idx1)
	}

	panic("fs: bmap: block number out of range")
}

// bmapLookup mirrors Bmap's address-resolution walk but never allocates:
// any absent direct entry or absent indirect/double-indirect block
// yields 0 rather than calling balloc, so it is safe to call without a
// surrounding log transaction. Used by Read, which only ever needs to
// tell "hole" (zero-fill) apart from "mapped" and must not open a
// transaction of its own just to find out.
func (fsys *Filesystem) bmapLookup(hart spinlock.HartID, ip *Inode, blockno uint32) uint32 {
	nd := uint32(nDirect(fsys.SB.Format))

	if blockno < nd {
		return ip.Addrs[blockno]
	}
	blockno -= nd

	if blockno < addrsPerBlock {
		return fsys.indirectLookup(hart, ip.Addrs[nd], blockno)
	}
	blockno -= addrsPerBlock

	if fsys.SB.Format == VimixFS && blockno < addrsPerBlock*addrsPerBlock {
		idx0 := blockno / addrsPerBlock
		idx1 := blockno % addrsPerBlock
		ib := fsys.indirectLookup(hart, ip.Addrs[nd+1], idx0)
		return fsys.indirectLookup(hart, ib, idx1)
	}

	panic("fs: bmapLookup: block number out of range")
}

// indirectLookup reads the idx'th entry out of the indirect block at
// ibAddr without allocating anything; ibAddr == 0 (no indirect block
// yet) and an unset slot inside it both report as 0, matching
// bmapLookup's "hole" contract.
func (fsys *Filesystem) indirectLookup(hart spinlock.HartID, ibAddr uint32, idx uint32) uint32 {
	if ibAddr == 0 {
		return 0
	}
	bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(ibAddr))
	if err != nil {
		panic(err)
	}
	addr := binary.LittleEndian.Uint32(bp.Data[idx*4 : idx*4+4])
	fsys.cache.Release(hart, bp)
	return addr
}

// bmapDirect returns (allocating if absent) the direct-block entry
// block_number out of addr_block, mirroring bmap_from_block_range
// applied directly to the inode's addrs array.
func (fsys *Filesystem) bmapDirect(hart spinlock.HartID, addrs []uint32, idx uint32) uint32 {
	addr := addrs[idx]
	if addr == 0 {
		addr = balloc(hart, fsys.cache, fsys.log, fsys.Dev, fsys.SB)
		if addr != 0 {
			addrs[idx] = addr
		}
	}
	return addr
}

// bmapIndirect loads the indirect block at ibAddr, returning
// (allocating if absent) its idx'th entry, logging the indirect
// block's own modification when an allocation occurs. Mirrors
// bmap_from_block.
func (fsys *Filesystem) bmapIndirect(hart spinlock.HartID, ibAddr uint32, idx uint32) uint32 {
	if ibAddr == 0 {
		return 0
	}
	bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(ibAddr))
	if err != nil {
		panic(err)
	}
	addr := binary.LittleEndian.Uint32(bp.Data[idx*4 : idx*4+4])
	didAlloc := false
	if addr == 0 {
		addr = balloc(hart, fsys.cache, fsys.log, fsys.Dev, fsys.SB)
		if addr != 0 {
			binary.LittleEndian.PutUint32(bp.Data[idx*4:idx*4+4], addr)
			didAlloc = true
		}
	}
	if didAlloc {
		fsys.log.Write(hart, bp)
	}
	fsys.cache.Release(hart, bp)
	return addr
}
