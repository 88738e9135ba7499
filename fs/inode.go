package fs

import (
	"encoding/binary"
	"fmt"

	"vimix/bio"
	"vimix/defs"
	"vimix/log"
	"vimix/spinlock"
)

// Inode is the in-memory copy of an on-disk inode, per spec.md 3/4.6:
// dev, inum, refcount, sleeplock, valid flag, cached on-disk fields.
type Inode struct {
	Dev  int
	Inum uint32

	lk    *spinlock.Sleeplock
	valid bool

	Type  int16
	Major int16
	Minor int16
	Nlink int16
	Size  uint32
	Addrs []uint32 // len == nDirect(fs.format) + 2 (indirect, double-indirect)
	UID   uint16
	GID   uint16
	Mode  uint16
	Ctime uint32
	Mtime uint32

	ref int // guarded by Filesystem.mu, not lk
}

// Lock acquires the inode's sleeplock, reading it from disk on first
// use, per spec.md 4.6's inode_lock.
func (ip *Inode) Lock(hart spinlock.HartID, fsys *Filesystem) {
	ip.lk.Acquire(hart)
	if !ip.valid {
		fsys.readInode(hart, ip)
		ip.valid = true
		if ip.Type == TypeUnused {
			panic("fs: locking unallocated inode")
		}
	}
}

// Unlock releases the inode's sleeplock.
func (ip *Inode) Unlock(hart spinlock.HartID) {
	ip.lk.Release(hart)
}

// Filesystem ties together the buffer cache, log, superblock, and the
// fixed-size in-memory inode table (spec.md 3: "Allocated from fixed
// table; freed ... when last reference dropped AND nlink==0").
type Filesystem struct {
	Dev   int
	SB    *Superblock
	cache *bio.Cache
	log   *log.Log
	mu    *spinlock.Mutex
	table []*Inode
}

// Open builds a Filesystem view over an already-formatted device.
func Open(dev int, sb *Superblock, cache *bio.Cache, l *log.Log, ninodeSlots int) *Filesystem {
	fsys := &Filesystem{
		Dev:   dev,
		SB:    sb,
		cache: cache,
		log:   l,
		mu:    spinlock.NewMutex("itable"),
		table: make([]*Inode, ninodeSlots),
	}
	return fsys
}

func newAddrs(f Format) []uint32 {
	return make([]uint32, nDirect(f)+2)
}

// Begin opens a log transaction, per spec.md 4.5's
// log_begin_fs_transaction. Callers outside this package (fd, proc) use
// this instead of importing vimix/log directly, keeping the transaction
// boundary at the filesystem-call level spec.md 4.6 describes.
func (fsys *Filesystem) Begin(hart spinlock.HartID) {
	fsys.log.Begin(hart)
}

// End closes a log transaction, committing if it was the last one
// outstanding, per spec.md 4.5's log_end_fs_transaction.
func (fsys *Filesystem) End(hart spinlock.HartID) {
	fsys.log.End(hart)
}

// Get returns an in-memory handle for (dev, inum), bumping its
// refcount, allocating a fresh table slot on first reference. Mirrors
// the teacher's iget/Inode_dup idiom from fs.h.
func (fsys *Filesystem) Get(hart spinlock.HartID, inum uint32) *Inode {
	fsys.mu.Acquire(hart)
	defer fsys.mu.Release(hart)

	var empty *Inode
	for _, ip := range fsys.table {
		if ip == nil {
			continue
		}
		if ip.ref > 0 && ip.Dev == fsys.Dev && ip.Inum == inum {
			ip.ref++
			return ip
		}
	}
	for i, ip := range fsys.table {
		if ip == nil {
			ip = &Inode{Dev: fsys.Dev, Inum: inum, ref: 1,
				lk: spinlock.NewSleeplock(fmt.Sprintf("inode(%d)", inum)),
				Addrs: newAddrs(fsys.SB.Format)}
			fsys.table[i] = ip
			return ip
		}
		if ip.ref == 0 && empty == nil {
			empty = ip
		}
	}
	if empty == nil {
		panic("fs: inode table exhausted")
	}
	empty.Dev = fsys.Dev
	empty.Inum = inum
	empty.valid = false
	empty.ref = 1
	empty.Addrs = newAddrs(fsys.SB.Format)
	return empty
}

// Dup increments ip's refcount, mirroring inode_dup.
func (fsys *Filesystem) Dup(hart spinlock.HartID, ip *Inode) *Inode {
	fsys.mu.Acquire(hart)
	ip.ref++
	fsys.mu.Release(hart)
	return ip
}

// Alloc scans the on-disk inode table for an unused slot, marks it
// with mode's type, writes it back, and returns an in-memory handle
// with refcount 1. Mirrors spec.md 4.6's inode_alloc.
func (fsys *Filesystem) Alloc(hart spinlock.HartID, mode int16) (*Inode, defs.Err_t) {
	for inum := uint32(1); inum < fsys.SB.NInodes; inum++ {
		bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(fsys.SB.IBlock(inum)))
		if err != nil {
			panic(err)
		}
		off := (inum % fsys.SB.InodesPerBlock()) * uint32(diskInodeSize(fsys.SB.Format))
		typ := int16(binary.LittleEndian.Uint16(bp.Data[off : off+2]))
		if typ == TypeUnused {
			encodeDiskInode(fsys.SB.Format, bp.Data[:], off, &Inode{Type: mode})
			fsys.log.Write(hart, bp)
			fsys.cache.Release(hart, bp)
			return fsys.Get(hart, inum), 0
		}
		fsys.cache.Release(hart, bp)
	}
	return nil, -defs.EOTHER
}

// readInode loads ip's on-disk fields from its inode block.
func (fsys *Filesystem) readInode(hart spinlock.HartID, ip *Inode) {
	bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(fsys.SB.IBlock(ip.Inum)))
	if err != nil {
		panic(err)
	}
	off := (ip.Inum % fsys.SB.InodesPerBlock()) * uint32(diskInodeSize(fsys.SB.Format))
	decodeDiskInode(fsys.SB.Format, bp.Data[:], off, ip)
	fsys.cache.Release(hart, bp)
}

// Update writes ip's in-memory fields back to disk, per spec.md 4.6's
// inode_update; must be called inside a transaction.
func (fsys *Filesystem) Update(hart spinlock.HartID, ip *Inode) {
	bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(fsys.SB.IBlock(ip.Inum)))
	if err != nil {
		panic(err)
	}
	off := (ip.Inum % fsys.SB.InodesPerBlock()) * uint32(diskInodeSize(fsys.SB.Format))
	encodeDiskInode(fsys.SB.Format, bp.Data[:], off, ip)
	fsys.log.Write(hart, bp)
	fsys.cache.Release(hart, bp)
}

// Trunc frees all of ip's data blocks (direct, indirect, and, for
// vimixfs, double-indirect), then zeroes size and calls Update. Per
// spec.md 4.6's inode_trunc.
func (fsys *Filesystem) Trunc(hart spinlock.HartID, ip *Inode) {
	nd := nDirect(fsys.SB.Format)
	for i := 0; i < nd; i++ {
		if ip.Addrs[i] != 0 {
			bfree(hart, fsys.cache, fsys.log, fsys.Dev, fsys.SB, ip.Addrs[i])
			ip.Addrs[i] = 0
		}
	}
	if ip.Addrs[nd] != 0 {
		fsys.freeIndirect(hart, ip.Addrs[nd])
		ip.Addrs[nd] = 0
	}
	if fsys.SB.Format == VimixFS && ip.Addrs[nd+1] != 0 {
		fsys.freeDoubleIndirect(hart, ip.Addrs[nd+1])
		ip.Addrs[nd+1] = 0
	}
	ip.Size = 0
	fsys.Update(hart, ip)
}

func (fsys *Filesystem) freeIndirect(hart spinlock.HartID, ib uint32) {
	bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(ib))
	if err != nil {
		panic(err)
	}
	for i := 0; i < addrsPerBlock; i++ {
		a := binary.LittleEndian.Uint32(bp.Data[i*4 : i*4+4])
		if a != 0 {
			bfree(hart, fsys.cache, fsys.log, fsys.Dev, fsys.SB, a)
		}
	}
	fsys.cache.Release(hart, bp)
	bfree(hart, fsys.cache, fsys.log, fsys.Dev, fsys.SB, ib)
}

func (fsys *Filesystem) freeDoubleIndirect(hart spinlock.HartID, dib uint32) {
	bp, err := fsys.cache.Read(hart, fsys.Dev, uint64(dib))
	if err != nil {
		panic(err)
	}
	var indirects [addrsPerBlock]uint32
	for i := range indirects {
		indirects[i] = binary.LittleEndian.Uint32(bp.Data[i*4 : i*4+4])
	}
	fsys.cache.Release(hart, bp)
	for _, ib := range indirects {
		if ib != 0 {
			fsys.freeIndirect(hart, ib)
		}
	}
	bfree(hart, fsys.cache, fsys.log, fsys.Dev, fsys.SB, dib)
}

// Put decrements ip's refcount; if it drops to zero and nlink is zero,
// the inode's content and table slot are freed. Per spec.md 4.6's
// inode_put; must run inside a transaction.
func (fsys *Filesystem) Put(hart spinlock.HartID, ip *Inode) {
	fsys.mu.Acquire(hart)
	if ip.ref == 1 && ip.valid && ip.Nlink == 0 {
		fsys.mu.Release(hart)
		ip.Lock(hart, fsys)
		fsys.Trunc(hart, ip)
		ip.Type = TypeUnused
		fsys.Update(hart, ip)
		ip.valid = false
		ip.Unlock(hart)
		fsys.mu.Acquire(hart)
	}
	ip.ref--
	fsys.mu.Release(hart)
}
