// Package spinlock implements the kernel's mutual-exclusion primitives:
// a hart-aware spinlock, a sleeplock built atop it, and a writer-
// preference reader/writer spinlock. Grounded on
// original_source/kernel/include/kernel/spinlock.h,sleeplock.h,rwspinlock.h
// and the teacher's pattern of embedding a lock directly in the owning
// struct (biscuit's Vm_t embeds sync.Mutex; fs.Bdev_block_t embeds
// sync.Mutex).
//
// Harts are not OS threads here (there is no baremetal interrupt
// controller to disable); callers identify themselves with a HartID,
// a small integer assigned once per scheduler goroutine. Acquire/Release
// track the owning hart (not a thread/goroutine id) and a nesting depth,
// exactly as spec.md's "stores the owning CPU" requirement asks, and
// panic on a double-acquire by the same hart.
package spinlock

import (
	"fmt"
	"sync/atomic"
)

// HartID identifies the calling hart. 0 is the hart that single-hart
// paths and tests use; a free Mutex records owner -1.
type HartID int32

// Mutex is a spinning mutual-exclusion lock that records its owning
// hart. The zero value is an unheld, unnamed lock; NewMutex sets Name
// (matching spin_lock_init's explicit-name convention for debugging).
type Mutex struct {
	state int32 // 0 = free, 1 = held
	owner int32 // HartID of the current owner, valid only while held
	depth int32 // nesting depth recorded by the owning hart
	Name  string
}

// NewMutex returns an initialized, unheld Mutex.
func NewMutex(name string) *Mutex {
	return &Mutex{Name: name}
}

// Holding reports whether hart currently owns l.
func (l *Mutex) Holding(hart HartID) bool {
	return atomic.LoadInt32(&l.state) == 1 && atomic.LoadInt32(&l.owner) == int32(hart)
}

// Acquire spins until ownership transitions to hart. Re-acquiring a
// lock already held by the same hart is a fatal error (detected via
// Holding before spinning).
func (l *Mutex) Acquire(hart HartID) {
	if l.Holding(hart) {
		panic(fmt.Sprintf("spinlock %q: double acquire by hart %d", l.Name, hart))
	}
	for !atomic.CompareAndSwapInt32(&l.state, 0, 1) {
		// busy-wait; a real hart would pause/wfi here.
	}
	atomic.StoreInt32(&l.owner, int32(hart))
	l.depth++
}

// Release asserts hart is the owner, then releases the lock.
func (l *Mutex) Release(hart HartID) {
	if !l.Holding(hart) {
		panic(fmt.Sprintf("spinlock %q: release by non-owner hart %d", l.Name, hart))
	}
	l.depth--
	atomic.StoreInt32(&l.owner, -1)
	atomic.StoreInt32(&l.state, 0)
}
