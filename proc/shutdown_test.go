package proc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vimix/limits"
)

// runUntilKilled simulates the per-process kernel path without going
// through the full Exit teardown (already covered by
// TestExitWakesWaitingParent): it polls Killed() the way a real
// blocking-point check would, then marks itself Zombie and closes done,
// exercising only what Shutdown itself depends on.
func runUntilKilled(p *Proc_t) {
	for !p.Killed() {
		time.Sleep(time.Millisecond)
	}
	p.mu.Acquire(hart0)
	p.state = Zombie
	p.mu.Release(hart0)
	close(p.done)
}

func TestShutdownKillsAndDrainsEveryLiveProcess(t *testing.T) {
	saved := System
	System = NewSched(4)
	defer func() { System = saved }()

	const n = 3
	procs := make([]*Proc_t, n)
	for i := 0; i < n; i++ {
		p, err := System.alloc()
		require.Zero(t, err)
		p.state = Runnable
		procs[i] = p
		go runUntilKilled(p)
	}

	done := make(chan struct{})
	go func() { Shutdown(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	for _, p := range procs {
		require.Equal(t, Zombie, p.State())
	}
}

// TestShutdownReportsAProcessThatNeverDrains gives Shutdown a Runnable
// process with no goroutine behind it at all -- standing in for one
// that was allocated but never actually gets a turn scheduled. Shutdown
// must still return (bounded by limits.ShutdownDrainTimeout, shortened
// here) and report that process's pid as stuck instead of hanging on it
// forever.
func TestShutdownReportsAProcessThatNeverDrains(t *testing.T) {
	saved := System
	System = NewSched(4)
	defer func() { System = saved }()

	savedTimeout := limits.ShutdownDrainTimeout
	limits.ShutdownDrainTimeout = 20 * time.Millisecond
	defer func() { limits.ShutdownDrainTimeout = savedTimeout }()

	p, err := System.alloc()
	require.Zero(t, err)
	p.state = Runnable

	done := make(chan []int, 1)
	go func() { done <- Shutdown() }()

	select {
	case stuck := <-done:
		require.Equal(t, []int{p.Pid}, stuck)
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return within its drain timeout")
	}
}

func TestShutdownWithNoLiveProcessesReturnsImmediately(t *testing.T) {
	saved := System
	System = NewSched(4)
	defer func() { System = saved }()

	done := make(chan struct{})
	go func() { Shutdown(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown blocked with an empty table")
	}
}
