// Package bio implements the buffer cache: a fixed pool of disk-block
// buffers with LRU replacement, per-buffer sleeplock, and pin/unpin for
// log retention, per spec.md 4.4. Grounded on the teacher's
// fs/blk.go (Bdev_block_t, the BlkList_t container/list wrapper, the
// Disk_i interface, synchronous Read/Write), adapted to BLOCK_SIZE=1024
// as spec.md's Data Model names it (the teacher uses BSIZE=4096, but
// this field is explicit in the core spec), and to a hosted backing
// store instead of an AHCI/virtio driver.
package bio

import (
	"context"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// BlockSize is the on-disk block size in bytes (spec.md 3: "BLOCK_SIZE
// payload (1024 B)").
const BlockSize = 1024

// Disk is the block device trait the buffer cache consumes. Concrete
// implementations are an out-of-scope external collaborator per
// spec.md 1 ("UART/console/virtio MMIO drivers... only their
// interfaces are specified where the core consumes them").
type Disk interface {
	ReadAt(blockno uint64, dst []byte) error
	WriteAt(blockno uint64, src []byte) error
}

// FileDisk backs Disk with a regular host file opened via
// golang.org/x/sys/unix, throttled by golang.org/x/time/rate so the
// crash-injection scenarios in spec.md 8 (log replay) can deterministically
// interleave a simulated crash between pwrite calls instead of racing a
// buffered os.File.
type FileDisk struct {
	fd  int
	mu  sync.Mutex
	lim *rate.Limiter
}

// OpenFileDisk opens (creating if absent) path as a FileDisk sized to
// hold nblocks blocks. bytesPerSec <= 0 disables throttling.
func OpenFileDisk(path string, nblocks int, bytesPerSec int) (*FileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0600)
	if err != nil {
		return nil, err
	}
	sz := int64(nblocks) * BlockSize
	if err := unix.Ftruncate(fd, sz); err != nil {
		unix.Close(fd)
		return nil, err
	}
	d := &FileDisk{fd: fd}
	if bytesPerSec > 0 {
		d.lim = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
	}
	return d, nil
}

func (d *FileDisk) throttle(n int) {
	if d.lim == nil {
		return
	}
	d.lim.WaitN(context.Background(), n) //nolint:errcheck // best-effort shaping, not a hard deadline
}

// ReadAt reads one BlockSize-byte block at blockno into dst.
func (d *FileDisk) ReadAt(blockno uint64, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.throttle(len(dst))
	off := int64(blockno) * BlockSize
	_, err := unix.Pread(d.fd, dst, off)
	return err
}

// WriteAt writes src (one block) at blockno and fsyncs the backing
// file, giving every commit-relevant write a durability point the way
// a real block device's completion interrupt would.
func (d *FileDisk) WriteAt(blockno uint64, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.throttle(len(src))
	off := int64(blockno) * BlockSize
	if _, err := unix.Pwrite(d.fd, src, off); err != nil {
		return err
	}
	return unix.Fdatasync(d.fd)
}

// Close closes the backing file descriptor.
func (d *FileDisk) Close() error {
	return unix.Close(d.fd)
}

// MemDisk is an in-memory Disk used by tests and by the crash-injection
// scenario in spec.md 8.2, which needs to interrupt a commit mid-way
// without real process termination.
type MemDisk struct {
	mu     sync.Mutex
	blocks map[uint64][BlockSize]byte
}

// NewMemDisk returns an empty in-memory disk.
func NewMemDisk() *MemDisk {
	return &MemDisk{blocks: make(map[uint64][BlockSize]byte)}
}

func (d *MemDisk) ReadAt(blockno uint64, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.blocks[blockno]
	copy(dst, b[:])
	return nil
}

func (d *MemDisk) WriteAt(blockno uint64, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b [BlockSize]byte
	copy(b[:], src)
	d.blocks[blockno] = b
	return nil
}
