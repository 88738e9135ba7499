package bio

import (
	"container/list"
	"fmt"
	"sync"

	"vimix/spinlock"
)

// Buf is a cached disk block: the in-memory analogue of the teacher's
// Bdev_block_t, narrowed to what spec.md 3/4.4 specify (valid flag,
// owned-by-driver flag, (dev, blockno), sleeplock, refcount, LRU
// linkage, BLOCK_SIZE payload).
type Buf struct {
	Dev     int
	Blockno uint64
	Valid   bool
	Busy    bool // owned by the driver for the duration of an I/O
	Data    [BlockSize]byte

	lk  *spinlock.Sleeplock
	ref int
	elt *list.Element // this buf's node in Cache.lru
}

// Lock/Unlock take/release the buffer's sleeplock; spec.md 4.4 requires
// it held across any read/modify/write of Data.
func (b *Buf) Lock(hart spinlock.HartID)   { b.lk.Acquire(hart) }
func (b *Buf) Unlock(hart spinlock.HartID) { b.lk.Release(hart) }

// Cache is the fixed-size buffer cache: N buffers arranged in an LRU
// list protected by one sync.Mutex, per spec.md 4.4.
type Cache struct {
	mu   sync.Mutex
	lru  *list.List // front = MRU, back = LRU victim candidate
	bufs map[uint64]*Buf
	disk Disk
	n    int
}

func key(dev int, blockno uint64) uint64 {
	return uint64(dev)<<56 | blockno
}

// NewCache builds a cache with a fixed capacity of n buffers over disk.
func NewCache(disk Disk, n int) *Cache {
	return &Cache{
		lru:  list.New(),
		bufs: make(map[uint64]*Buf),
		disk: disk,
		n:    n,
	}
}

// Read implements spec.md 4.4's bio_read: find-or-evict under the cache
// lock, then acquire the per-buffer sleeplock and fill from disk if not
// valid.
func (c *Cache) Read(hart spinlock.HartID, dev int, blockno uint64) (*Buf, error) {
	b := c.getBuf(dev, blockno)
	b.Lock(hart)
	if !b.Valid {
		if err := c.disk.ReadAt(blockno, b.Data[:]); err != nil {
			b.Unlock(hart)
			return nil, err
		}
		b.Valid = true
	}
	return b, nil
}

func (c *Cache) getBuf(dev int, blockno uint64) *Buf {
	k := key(dev, blockno)
	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.bufs[k]; ok {
		b.ref++
		c.lru.MoveToFront(b.elt)
		return b
	}

	if len(c.bufs) < c.n {
		b := &Buf{Dev: dev, Blockno: blockno, ref: 1,
			lk: spinlock.NewSleeplock(fmt.Sprintf("buf(%d,%d)", dev, blockno))}
		b.elt = c.lru.PushFront(b)
		c.bufs[k] = b
		return b
	}

	// Scan from the LRU end for a victim with refcount 0, per spec.md
	// 4.4 step 2; panic ("no buffers") if none exists, preserving the
	// documented capacity-configuration-error behavior (spec.md 9).
	for e := c.lru.Back(); e != nil; e = e.Prev() {
		cand := e.Value.(*Buf)
		if cand.ref == 0 {
			delete(c.bufs, key(cand.Dev, cand.Blockno))
			cand.Dev = dev
			cand.Blockno = blockno
			cand.Valid = false
			cand.ref = 1
			c.bufs[k] = cand
			c.lru.MoveToFront(e)
			return cand
		}
	}
	panic("bio: no buffers")
}

// Write implements spec.md 4.4's bio_write: a synchronous write with
// the buffer's sleeplock already held by the caller.
func (c *Cache) Write(b *Buf) error {
	return c.disk.WriteAt(b.Blockno, b.Data[:])
}

// Release implements spec.md 4.4's bio_release: release the sleeplock,
// then decrement refcount under the cache lock; on reaching zero the
// buffer moves to the MRU head so it is the last reclaimed.
func (c *Cache) Release(hart spinlock.HartID, b *Buf) {
	b.Unlock(hart)
	c.mu.Lock()
	defer c.mu.Unlock()
	b.ref--
	if b.ref < 0 {
		panic("bio: refcount underflow")
	}
	if b.ref == 0 {
		c.lru.MoveToFront(b.elt)
	}
}

// Pin/Unpin adjust refcount without taking the sleeplock, keeping
// modified buffers resident for log commit (spec.md 4.4/4.5, GLOSSARY
// "LRU pin").
func (c *Cache) Pin(b *Buf) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b.ref++
}

func (c *Cache) Unpin(b *Buf) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b.ref--
	if b.ref < 0 {
		panic("bio: refcount underflow")
	}
	if b.ref == 0 {
		c.lru.MoveToFront(b.elt)
	}
}

// RefCount reports a buffer's current refcount, for tests exercising
// the MRU/LRU migration testable property (spec.md 8).
func (c *Cache) RefCount(b *Buf) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return b.ref
}

// MRUBlockno returns the blockno at the MRU head, for tests.
func (c *Cache) MRUBlockno() (uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru.Front() == nil {
		return 0, false
	}
	return c.lru.Front().Value.(*Buf).Blockno, true
}
