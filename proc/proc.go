// Package proc implements the process table and scheduler bookkeeping of
// spec.md 4.7: a fixed-size process array, fork/exec/exit/wait, the
// UNUSED/USED/SLEEPING/RUNNABLE/RUNNING/ZOMBIE state machine, and the
// sleep/wakeup primitive the rest of the module's blocking calls (sleeplock
// contention, log transaction backpressure, pipe read/write) depend on
// through the spinlock.Sleeper/Waker hooks installed by init.
//
// Grounded on SPEC_FULL.md §2's "harts as goroutines" adoption of the
// teacher's actual innovation (biscuit lets the Go runtime's M:N goroutine
// scheduler multiplex kernel "threads" across harts): each Proc_t's
// kernel-mode path runs on its own goroutine, so there is no hand-rolled
// context-switch loop to write -- the Go runtime already preempts and
// multiplexes goroutines across GOMAXPROCS harts the way biscuit's forked
// runtime multiplexes them across CPU_t's. What remains to build, and what
// this package actually contains, is everything spec.md 4.7 describes
// beyond the context switch itself: table allocation, state transitions,
// fork/exit/wait bookkeeping, and the sleep channel.
package proc

import (
	"sync"

	"vimix/defs"
	"vimix/fd"
	"vimix/limits"
	"vimix/spinlock"
	"vimix/vm"
)

// State is a process's position in spec.md 4.7's state machine.
type State int

const (
	Unused State = iota
	Used
	Runnable
	Running
	Sleeping
	Zombie
)

// Proc_t is one process-table slot, per spec.md 3's Process entity.
type Proc_t struct {
	mu *spinlock.Mutex

	Pid    int
	Parent *Proc_t
	Name   string

	state State

	killed     bool
	exitStatus int

	AS *vm.AddressSpace
	Tf *vm.Trapframe

	// StackLo/StackHi bound the user stack region set up by Exec:
	// StackHi never moves, StackLo is the lowest currently-mapped
	// stack page and creeps downward as HandleStackFault maps more of it.
	StackLo, StackHi uintptr

	Files [limits.MaxFilesPerProcess]*fd.Fd_t
	Cwd   *fd.Cwd_t

	done chan struct{} // closed when this process becomes a Zombie
}

// GetPid returns the process's pid.
func (p *Proc_t) GetPid() int { return p.Pid }

// Killed reports whether the process has been marked for termination.
func (p *Proc_t) Killed() bool {
	p.mu.Acquire(0)
	defer p.mu.Release(0)
	return p.killed
}

// State returns the process's current state.
func (p *Proc_t) State() State {
	p.mu.Acquire(0)
	defer p.mu.Release(0)
	return p.state
}

// Sched_t is the fixed-size process table plus pid allocator, per spec.md
// 4.7's "per-CPU loop... scans the fixed process array." Since each
// process already runs on its own goroutine (see package doc), Sched_t
// does not itself run a scan-and-dispatch loop; it is the table and the
// operations (alloc/free/Find) the rest of this package and fork/exit/
// wait use to mutate it under spec.md's stated lock ordering
// (process-table lock before any per-process lock).
type Sched_t struct {
	mu      *spinlock.Mutex
	table   []*Proc_t
	nextPid int
}

// NewSched returns a scheduler with room for n processes, per
// limits.MaxProcesses.
func NewSched(n int) *Sched_t {
	return &Sched_t{mu: spinlock.NewMutex("ptable"), table: make([]*Proc_t, n), nextPid: 1}
}

// alloc finds an UNUSED slot, transitions it to USED, and assigns a fresh
// pid, per spec.md 4.7's "UNUSED → USED: allocation in fork... (process-
// table spinlock held)".
func (s *Sched_t) alloc() (*Proc_t, defs.Err_t) {
	s.mu.Acquire(0)
	defer s.mu.Release(0)
	for i, p := range s.table {
		if p == nil {
			np := &Proc_t{mu: spinlock.NewMutex("proc"), state: Used, Pid: s.nextPid, done: make(chan struct{})}
			s.nextPid++
			s.table[i] = np
			return np, 0
		}
	}
	for _, p := range s.table {
		if p.State() == Unused {
			p.mu.Acquire(0)
			p.state = Used
			p.Pid = s.nextPid
			p.done = make(chan struct{})
			p.mu.Release(0)
			s.nextPid++
			return p, 0
		}
	}
	return nil, -defs.EOTHER
}

// free returns p's slot to UNUSED, per spec.md 4.7's "ZOMBIE → UNUSED:
// parent's wait frees the child's resources."
func (s *Sched_t) free(p *Proc_t) {
	p.mu.Acquire(0)
	p.state = Unused
	p.AS = nil
	p.Tf = nil
	p.Parent = nil
	p.mu.Release(0)
}

// Find returns the process with the given pid, or nil.
func (s *Sched_t) Find(pid int) *Proc_t {
	s.mu.Acquire(0)
	defer s.mu.Release(0)
	for _, p := range s.table {
		if p != nil && p.Pid == pid && p.State() != Unused {
			return p
		}
	}
	return nil
}

// Live returns every process-table slot not currently UNUSED, in table
// order, for callers that need to fan out over the whole table (Shutdown).
func (s *Sched_t) Live() []*Proc_t {
	s.mu.Acquire(0)
	defer s.mu.Release(0)
	var out []*Proc_t
	for _, p := range s.table {
		if p != nil && p.State() != Unused {
			out = append(out, p)
		}
	}
	return out
}

// children returns every process whose Parent is p.
func (s *Sched_t) children(p *Proc_t) []*Proc_t {
	s.mu.Acquire(0)
	defer s.mu.Release(0)
	var out []*Proc_t
	for _, c := range s.table {
		if c != nil && c.Parent == p {
			out = append(out, c)
		}
	}
	return out
}

var rootOnce sync.Once
var rootProc *Proc_t

// SetRoot records the init process new orphans are reparented to, per
// spec.md 4.7's exit description ("reparents children to the root
// process"). Called once by the boot path after init's Proc_t exists.
func SetRoot(p *Proc_t) { rootOnce.Do(func() { rootProc = p }) }
