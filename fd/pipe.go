package fd

import (
	"vimix/defs"
	"vimix/spinlock"
)

// PipeSize is the ring buffer capacity, per spec.md 3's "512-byte ring".
const PipeSize = 512

// Pipe_t is the anonymous-pipe object a PIPE-typed File_t points at: a
// spinlock-guarded ring buffer plus monotonic read/write cursors and
// open-end flags, per spec.md 3's Pipe entity and spec.md 4's sleep/wakeup
// discipline (blocking read/write going through the injected
// spinlock.Sleeper/Waker hooks, same mechanism the log package's
// Begin/End use).
type Pipe_t struct {
	mu    *spinlock.Mutex
	data  [PipeSize]byte
	nread uint32 // total bytes consumed so far
	nwrite uint32 // total bytes produced so far

	ReadOpen  bool
	WriteOpen bool
}

// NewPipe allocates a pipe with both ends open, per spec.md 3's "heap
// page; freed when both ends closed" lifetime.
func NewPipe() *Pipe_t {
	return &Pipe_t{mu: spinlock.NewMutex("pipe"), ReadOpen: true, WriteOpen: true}
}

// Write copies up to len(src) bytes into the ring, blocking while it is
// full and the read end is still open. Returns a short count, never an
// error, unless the read end has already closed (broken pipe).
func (p *Pipe_t) Write(hart spinlock.HartID, src []byte) (int, defs.Err_t) {
	p.mu.Acquire(hart)
	defer p.mu.Release(hart)

	total := 0
	for total < len(src) {
		if !p.ReadOpen {
			if spinlock.Waker != nil {
				spinlock.Waker(p)
			}
			return total, -defs.EOTHER
		}
		if p.nwrite-p.nread == PipeSize {
			if spinlock.Waker != nil {
				spinlock.Waker(p)
			}
			spinlock.Sleeper(p, p.mu, hart)
			continue
		}
		p.data[p.nwrite%PipeSize] = src[total]
		p.nwrite++
		total++
	}
	if spinlock.Waker != nil {
		spinlock.Waker(p)
	}
	return total, 0
}

// Read copies up to len(dst) bytes out of the ring, blocking while it is
// empty and the write end is still open; returns 0 (not an error) once
// the write end has closed and the ring has drained, signalling EOF.
func (p *Pipe_t) Read(hart spinlock.HartID, dst []byte) (int, defs.Err_t) {
	p.mu.Acquire(hart)
	defer p.mu.Release(hart)

	for p.nread == p.nwrite && p.WriteOpen {
		spinlock.Sleeper(p, p.mu, hart)
	}
	total := 0
	for total < len(dst) && p.nread != p.nwrite {
		dst[total] = p.data[p.nread%PipeSize]
		p.nread++
		total++
	}
	if spinlock.Waker != nil {
		spinlock.Waker(p)
	}
	return total, 0
}

// CloseReader marks the read end closed and wakes any blocked writer.
func (p *Pipe_t) CloseReader(hart spinlock.HartID) {
	p.mu.Acquire(hart)
	p.ReadOpen = false
	if spinlock.Waker != nil {
		spinlock.Waker(p)
	}
	p.mu.Release(hart)
}

// CloseWriter marks the write end closed and wakes any blocked reader.
func (p *Pipe_t) CloseWriter(hart spinlock.HartID) {
	p.mu.Acquire(hart)
	p.WriteOpen = false
	if spinlock.Waker != nil {
		spinlock.Waker(p)
	}
	p.mu.Release(hart)
}
