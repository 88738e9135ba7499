package fd

import "vimix/spinlock"

// Fd permission bits, mirroring the teacher's fd/fd.go constants.
const (
	FD_READ    = 0x1
	FD_WRITE   = 0x2
	FD_CLOEXEC = 0x4
)

// Fd_t is a process's open-file-table slot: a reference to the shared
// File_t plus this descriptor's own permission bits (FD_CLOEXEC is
// per-descriptor even when two fds share one File_t after dup()).
type Fd_t struct {
	File  *File_t
	Perms int
}

// Copyfd duplicates an open file descriptor for dup()/fork(), bumping the
// underlying File_t's refcount rather than reopening it (spec.md 4.7's
// fork "duplicate file references").
func Copyfd(hart spinlock.HartID, fd *Fd_t) *Fd_t {
	return &Fd_t{File: fd.File.Dup(hart), Perms: fd.Perms}
}

// Close_panic closes a descriptor, panicking if called on an already-empty
// slot -- mirrors the teacher's Close_panic idiom for call sites (exit,
// failed fork cleanup) where a failure here is a kernel bug, not a
// recoverable syscall error.
func Close_panic(hart spinlock.HartID, f *Fd_t) {
	if f.File == nil {
		panic("fd: close of empty descriptor")
	}
	f.File.Close(hart)
	f.File = nil
}
