// Package fd implements the open-file abstraction spec.md 3 describes: a
// fixed-pool, refcounted File_t that is either a pipe end, an inode
// offset-cursor, or a device; the per-process Fd_t wrapper carrying
// permission bits; and Cwd_t, the per-process working-directory handle.
// Grounded on the teacher's fd/fd.go (Fd_t/Copyfd/Close_panic/Cwd_t shape),
// generalized from the teacher's Fdops_i-interface indirection back to
// spec.md's concrete tagged-union File entity, since spec.md's Data Model
// specifies File as a closed set of four kinds rather than an open
// interface.
package fd

import (
	"vimix/defs"
	"vimix/fs"
	"vimix/spinlock"
	"vimix/stat"
)

// FileType tags which union member a File_t currently holds, per spec.md
// 3's "type ∈ {NONE, PIPE, INODE, DEVICE}".
type FileType int

const (
	FileNone FileType = iota
	FilePipe
	FileInode
	FileDevice
)

// Device is the minimal trait a char/block device major registers, per
// spec.md 1's framing that device drivers are external collaborators whose
// only specified surface is the interface the core consumes.
type Device interface {
	Read(hart spinlock.HartID, dst []byte) (int, defs.Err_t)
	Write(hart spinlock.HartID, src []byte) (int, defs.Err_t)
}

var devices = map[int]Device{}

// RegisterDevice installs the handler for a device major number; called by
// whatever owns the concrete driver (outside this module's scope per
// spec.md 1).
func RegisterDevice(major int, d Device) {
	devices[major] = d
}

// File_t is the fixed-pool open-file object fd tables point at, per
// spec.md 3. ref and Readable/Writable are guarded by mu; Off is only
// touched while the owning Fd_t's caller holds the file (single-threaded
// per fd use, as in the teacher and the source).
type File_t struct {
	mu   *spinlock.Mutex
	Type FileType
	ref  int

	Readable bool
	Writable bool

	Pipe *Pipe_t

	Fsys *fs.Filesystem
	Ino  *fs.Inode
	Off  uint32

	Major int
}

func newFile(t FileType, readable, writable bool) *File_t {
	return &File_t{mu: spinlock.NewMutex("file"), Type: t, ref: 1, Readable: readable, Writable: writable}
}

// NewInodeFile wraps an already-ref'd inode as a seekable File_t.
func NewInodeFile(fsys *fs.Filesystem, ip *fs.Inode, readable, writable bool) *File_t {
	f := newFile(FileInode, readable, writable)
	f.Fsys, f.Ino = fsys, ip
	return f
}

// NewPipeFile wraps one end of a pipe.
func NewPipeFile(p *Pipe_t, readable, writable bool) *File_t {
	f := newFile(FilePipe, readable, writable)
	f.Pipe = p
	return f
}

// NewDeviceFile wraps a registered device major.
func NewDeviceFile(major int, readable, writable bool) *File_t {
	f := newFile(FileDevice, readable, writable)
	f.Major = major
	return f
}

// Dup increments the refcount, mirroring inode_dup/Pipe refcounting for
// whichever union member f holds.
func (f *File_t) Dup(hart spinlock.HartID) *File_t {
	f.mu.Acquire(hart)
	f.ref++
	f.mu.Release(hart)
	return f
}

// Close decrements the refcount, releasing the underlying resource once it
// reaches zero: for INODE, fs.Put (must run inside a transaction, per
// spec.md 4.6); for PIPE, closing this end's open flag; for DEVICE/NONE,
// nothing further.
func (f *File_t) Close(hart spinlock.HartID) {
	f.mu.Acquire(hart)
	f.ref--
	done := f.ref == 0
	f.mu.Release(hart)
	if !done {
		return
	}
	switch f.Type {
	case FileInode:
		f.Fsys.Put(hart, f.Ino)
	case FilePipe:
		if f.Writable {
			f.Pipe.CloseWriter(hart)
		}
		if f.Readable {
			f.Pipe.CloseReader(hart)
		}
	}
}

// Read dispatches to the pipe, inode (advancing Off), or device read path,
// per spec.md 4.6/4.7's read(2) semantics.
func (f *File_t) Read(hart spinlock.HartID, dst []byte) (int, defs.Err_t) {
	if !f.Readable {
		return 0, -defs.EBADF
	}
	switch f.Type {
	case FilePipe:
		return f.Pipe.Read(hart, dst)
	case FileInode:
		f.Ino.Lock(hart, f.Fsys)
		n, err := f.Fsys.Read(hart, f.Ino, dst, f.Off)
		f.Ino.Unlock(hart)
		if err == 0 {
			f.Off += uint32(n)
		}
		return n, err
	case FileDevice:
		d, ok := devices[f.Major]
		if !ok {
			return 0, -defs.ENODEV
		}
		return d.Read(hart, dst)
	default:
		return 0, -defs.EBADF
	}
}

// Write dispatches to the pipe, inode (advancing Off, inside a log
// transaction per spec.md 4.6), or device write path.
func (f *File_t) Write(hart spinlock.HartID, src []byte) (int, defs.Err_t) {
	if !f.Writable {
		return 0, -defs.EBADF
	}
	switch f.Type {
	case FilePipe:
		return f.Pipe.Write(hart, src)
	case FileInode:
		f.Ino.Lock(hart, f.Fsys)
		n, err := f.Fsys.Write(hart, f.Ino, src, f.Off)
		f.Ino.Unlock(hart)
		if n > 0 {
			f.Off += uint32(n)
		}
		return n, err
	case FileDevice:
		d, ok := devices[f.Major]
		if !ok {
			return 0, -defs.ENODEV
		}
		return d.Write(hart, src)
	default:
		return 0, -defs.EBADF
	}
}

// Lseek repositions an inode file's offset, per SEEK_SET/SEEK_CUR/SEEK_END
// (spec.md 6); only regular files are seekable.
func (f *File_t) Lseek(hart spinlock.HartID, off int64, whence int) (uint32, defs.Err_t) {
	if f.Type != FileInode {
		return 0, -defs.ESPIPE
	}
	var base int64
	switch whence {
	case defs.SEEK_SET:
		base = 0
	case defs.SEEK_CUR:
		base = int64(f.Off)
	case defs.SEEK_END:
		f.Ino.Lock(hart, f.Fsys)
		base = int64(f.Ino.Size)
		f.Ino.Unlock(hart)
	default:
		return 0, -defs.EINVAL
	}
	newOff := base + off
	if newOff < 0 {
		return 0, -defs.EINVAL
	}
	f.Off = uint32(newOff)
	return f.Off, 0
}

// Fstat fills st from the underlying inode; only INODE files carry inode
// metadata, and every other file type gets EINVAL.
func (f *File_t) Fstat(hart spinlock.HartID, st *stat.Stat_t) defs.Err_t {
	if f.Type != FileInode {
		return -defs.EINVAL
	}
	f.Ino.Lock(hart, f.Fsys)
	st.Dev = uint64(f.Ino.Dev)
	st.Ino = uint64(f.Ino.Inum)
	st.Mode = uint64(f.Ino.Type)
	st.Nlink = f.Ino.Nlink
	st.Size = uint64(f.Ino.Size)
	f.Ino.Unlock(hart)
	return 0
}
