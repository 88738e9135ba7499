package proc

import (
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vimix/limits"
)

// Shutdown kills every live process and waits for each to actually exit,
// fanning the kills out across the live table with an errgroup instead of
// a serial loop -- the Go analogue of spec.md 4.7's per-CPU scheduler loop
// each reaching its own process concurrently, bounded the same way
// proc.Fork bounds concurrent page-table copies (limits.MaxCPUs).
//
// This resolves each target through one sequential System.Live() call up
// front rather than Kill's usual System.Find(pid), then signals each
// process directly: every goroutine below only ever touches its own
// process's mutex, so there is no HartID-collision hazard across them --
// unlike Kill, which would have every goroutine re-contend the shared
// process-table mutex under the same hart id.
//
// A process that is Runnable but never actually gets scheduled never
// reaches a point where it notices killed and closes done, so waiting on
// done unconditionally could hang Shutdown forever; each wait is instead
// bounded by limits.ShutdownDrainTimeout, and Shutdown reports back the
// pids that did not drain in time rather than blocking on them.
func Shutdown() []int {
	var mu sync.Mutex
	var stuck []int

	var g errgroup.Group
	g.SetLimit(limits.MaxCPUs)
	for _, p := range System.Live() {
		p := p
		g.Go(func() error {
			p.mu.Acquire(0)
			p.killed = true
			p.mu.Release(0)
			Wake(p)
			select {
			case <-p.done:
			case <-time.After(limits.ShutdownDrainTimeout):
				mu.Lock()
				stuck = append(stuck, p.Pid)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return stuck
}
