package fs

import (
	"vimix/defs"
	"vimix/log"
	"vimix/spinlock"
	"vimix/util"
)

// Read copies up to len(dst) bytes from ip starting at off into dst,
// per spec.md 4.6's inode_read. ip's sleeplock must already be held.
func (fsys *Filesystem) Read(hart spinlock.HartID, ip *Inode, dst []byte, off uint32) (int, defs.Err_t) {
	if off > ip.Size {
		return 0, 0
	}
	n := uint32(len(dst))
	if off+n > ip.Size {
		n = ip.Size - off
	}
	total := uint32(0)
	for total < n {
		blockno := (off + total) / BlockSize
		boff := (off + total) % BlockSize
		bn := fsys.bmapLookup(hart, ip, blockno)
		m := util.Min(BlockSize-boff, n-total)
		if bn == 0 {
			// sparse hole within a tracked size: treat as zero-filled.
			for i := uint32(0); i < m; i++ {
				dst[total+i] = 0
			}
			total += m
			continue
		}
		bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(bn))
		if err != nil {
			return int(total), -defs.EFAULT
		}
		copy(dst[total:total+m], bp.Data[boff:boff+m])
		fsys.cache.Release(hart, bp)
		total += m
	}
	return int(total), 0
}

// maxWritePerTx bounds a single log transaction's worst-case block
// writes: one inode block, one (or two, for vimixfs) indirect blocks,
// one bitmap block, leaving the remainder for data blocks themselves --
// the same sizing idea as spec.md 4.6's "Writes split large user
// buffers into sub-transactions."
const maxWritePerTx = (log.MaxOpBlocks - 4) * BlockSize

// Write appends/overwrites len(src) bytes into ip starting at off,
// growing the inode through Bmap as needed, splitting the operation
// into sub-transactions so each one's worst case fits inside one log
// transaction (spec.md 4.6). Returns the number of bytes actually
// written; a partial write on allocation failure is not an error, per
// spec.md 7's "I/O and allocation failures ... cause partial
// completion."
func (fsys *Filesystem) Write(hart spinlock.HartID, ip *Inode, src []byte, off uint32) (int, defs.Err_t) {
	if off > ip.Size || off+uint32(len(src)) < off {
		// mirrors original_source's writei guard: writes may only extend
		// an inode contiguously, never punch a hole past the current end.
		return 0, -defs.EINVAL
	}
	total := 0
	for total < len(src) {
		chunk := util.Min(len(src)-total, maxWritePerTx)
		n, err := fsys.writeTx(hart, ip, src[total:total+chunk], off+uint32(total))
		total += n
		if err != 0 {
			return total, err
		}
		if n < chunk {
			break
		}
	}
	return total, 0
}

func (fsys *Filesystem) writeTx(hart spinlock.HartID, ip *Inode, src []byte, off uint32) (int, defs.Err_t) {
	fsys.log.Begin(hart)
	defer fsys.log.End(hart)

	n := uint32(len(src))
	total := uint32(0)
	for total < n {
		blockno := (off + total) / BlockSize
		boff := (off + total) % BlockSize
		bn := fsys.Bmap(hart, ip, blockno)
		if bn == 0 {
			break
		}
		bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(bn))
		if err != nil {
			break
		}
		m := util.Min(BlockSize-boff, n-total)
		copy(bp.Data[boff:boff+m], src[total:total+m])
		fsys.log.Write(hart, bp)
		fsys.cache.Release(hart, bp)
		total += m
	}
	if off+total > ip.Size {
		ip.Size = off + total
	}
	fsys.Update(hart, ip)
	return int(total), 0
}
