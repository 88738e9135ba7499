package proc

import (
	"sync"

	"vimix/spinlock"
)

// waiters is the condvar-per-structure redesign's wait table: each key
// (the address of whatever struct a caller sleeps on -- a *log.Log, a
// *fd.Pipe_t, an inode) maps to the channels currently blocked on it.
// Grounded on spec.md 9's license to replace xv6's wakeup-by-channel-
// address sleep/wakeup with one condvar per structure: rather than a
// single global sleeping-process list scanned on every wakeup, each
// struct's address is its own broadcast topic.
var (
	waitersMu sync.Mutex
	waiters   = map[interface{}][]chan struct{}{}
)

// sleeper registers a fresh wait channel for key and returns it. It
// must be called while lk is still held by the caller, and the
// returned channel waited on only after lk has been released, so a
// Waker racing in between never misses this waiter (the registration
// happens before release, closing the lost-wakeup window spec.md 8's
// testable property #6 calls out).
func sleeper(key interface{}) chan struct{} {
	ch := make(chan struct{})
	waitersMu.Lock()
	waiters[key] = append(waiters[key], ch)
	waitersMu.Unlock()
	return ch
}

// Sleep blocks the calling goroutine on key until a matching Wake,
// atomically with respect to lk: lk is released only after this
// goroutine's channel is already registered, and reacquired before
// Sleep returns, mirroring xv6's sleep(chan, lk) contract.
func Sleep(key interface{}, lk *spinlock.Mutex, hart spinlock.HartID) {
	ch := sleeper(key)
	lk.Release(hart)
	<-ch
	lk.Acquire(hart)
}

// Wake broadcasts to every goroutine currently sleeping on key,
// mirroring xv6's wakeup(chan): wake all, let each re-check its own
// condition under its lock (spec.md 8's sleep/wakeup testable
// property requires no lost wakeups, not a single-waiter handoff).
func Wake(key interface{}) {
	waitersMu.Lock()
	chs := waiters[key]
	delete(waiters, key)
	waitersMu.Unlock()
	for _, ch := range chs {
		close(ch)
	}
}

// installSleepHooks wires Sleep/Wake into spinlock.Sleeper/Waker, the
// dependency-injection seam spinlock declares (and log and fd's pipes
// call) so that none of them imports proc directly (proc imports fd and fs, which would
// make spinlock importing proc a cycle). Mirrors the teacher's
// vm/as.go Cpumap(func(int) uint32) indirection.
func installSleepHooks() {
	spinlock.Sleeper = func(key interface{}, lk *spinlock.Mutex, hart spinlock.HartID) {
		Sleep(key, lk, hart)
	}
	spinlock.Waker = func(key interface{}) {
		Wake(key)
	}
}

func init() {
	installSleepHooks()
}
