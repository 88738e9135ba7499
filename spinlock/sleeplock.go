package spinlock

// Sleeper and Waker are injected by package proc at init time, mirroring
// the teacher's dependency-inversion pattern for cross-package hooks
// (vm/as.go's Cpumap(f func(int) uint32) lets vm call into a function
// supplied by a higher layer without importing it). spinlock sits below
// proc in the dependency order, so a Sleeplock cannot call proc.Sleep
// directly; instead proc.init() installs these hooks.
var (
	Sleeper func(key interface{}, lk *Mutex, hart HartID)
	Waker   func(key interface{})
)

// Sleeplock is a long-term lock for process contexts: it may block the
// calling hart's process (via Sleeper) instead of spinning. Only a
// process context may acquire one -- never an interrupt handler --
// matching spec.md 4.1.
type Sleeplock struct {
	lk     *Mutex
	locked bool
	holder HartID
	Name   string
}

// NewSleeplock returns an initialized, unlocked Sleeplock.
func NewSleeplock(name string) *Sleeplock {
	return &Sleeplock{lk: NewMutex(name + ".guard"), Name: name}
}

// Acquire blocks the calling hart's process until the lock is free, then
// takes it.
func (s *Sleeplock) Acquire(hart HartID) {
	s.lk.Acquire(hart)
	for s.locked {
		if Sleeper == nil {
			panic("spinlock: Sleeper hook not installed (proc package not imported)")
		}
		Sleeper(s, s.lk, hart)
	}
	s.locked = true
	s.holder = hart
	s.lk.Release(hart)
}

// Release releases the lock and wakes any waiters.
func (s *Sleeplock) Release(hart HartID) {
	s.lk.Acquire(hart)
	if !s.locked || s.holder != hart {
		panic("spinlock: sleeplock release by non-holder")
	}
	s.locked = false
	s.lk.Release(hart)
	if Waker != nil {
		Waker(s)
	}
}

// Holding reports whether hart currently holds s.
func (s *Sleeplock) Holding(hart HartID) bool {
	s.lk.Acquire(hart)
	defer s.lk.Release(hart)
	return s.locked && s.holder == hart
}
