package proc

import (
	"vimix/defs"
	"vimix/fd"
	"vimix/spinlock"
)

// Exit tears a process down: every open descriptor is closed, the cwd
// inode is released inside its own transaction (spec.md 4.6's "inode_put
// must run inside a transaction"), any children are reparented to the
// root process (waking the root when a child is already ZOMBIE, so its
// Wait can collect it), then the process itself becomes ZOMBIE and wakes
// its parent's wait. Exit then returns to its caller; it does not end or
// park the calling goroutine.
func Exit(hart spinlock.HartID, p *Proc_t, status int) {
	for i, f := range p.Files {
		if f != nil {
			fd.Close_panic(hart, f)
			p.Files[i] = nil
		}
	}

	if p.Cwd != nil {
		p.Cwd.Fsys.Begin(hart)
		p.Cwd.Fsys.Put(hart, p.Cwd.Ino)
		p.Cwd.Fsys.End(hart)
		p.Cwd = nil
	}

	for _, c := range System.children(p) {
		c.mu.Acquire(hart)
		c.Parent = rootProc
		reap := c.state == Zombie
		c.mu.Release(hart)
		if reap && rootProc != nil {
			Wake(rootProc)
		}
	}

	p.mu.Acquire(hart)
	p.state = Zombie
	p.exitStatus = status
	p.mu.Release(hart)
	close(p.done)

	if p.Parent != nil {
		Wake(p.Parent)
	}
}

// Wait blocks parent until a child exits, then reaps it (freeing its
// address space and process-table slot) and returns its pid and exit
// status. Returns -ECHILD immediately if parent has no children.
func Wait(hart spinlock.HartID, parent *Proc_t) (int, int, defs.Err_t) {
	for {
		children := System.children(parent)
		if len(children) == 0 {
			return 0, 0, -defs.ECHILD
		}
		for _, c := range children {
			c.mu.Acquire(hart)
			if c.state != Zombie {
				c.mu.Release(hart)
				continue
			}
			pid, status := c.Pid, c.exitStatus
			c.mu.Release(hart)
			if c.AS != nil {
				c.AS.Free()
			}
			System.free(c)
			return pid, status, 0
		}
		parent.mu.Acquire(hart)
		Sleep(parent, parent.mu, hart)
		parent.mu.Release(hart)
	}
}

// Kill marks the process at pid for termination; the process notices
// at its next blocking-point check (spec.md 4.7's kill flag) and exits
// on its own. Returns -ESRCH if no such process exists.
func Kill(pid int) defs.Err_t {
	p := System.Find(pid)
	if p == nil {
		return -defs.ESRCH
	}
	p.mu.Acquire(0)
	p.killed = true
	p.mu.Release(0)
	Wake(p)
	return 0
}
