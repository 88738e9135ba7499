package fd

import (
	"path"
	"strings"
	"sync"

	"vimix/fs"
)

// Cwd_t tracks a process's current working directory: the filesystem and
// inode it resolves to, plus the canonical path string used to answer
// getcwd()-style queries. Grounded on the teacher's fd.Cwd_t, generalized
// from the teacher's ustr.Ustr byte-slice path type to a plain Go string
// (this repository never needs ustr's other consumers) and from its *Fd_t
// field to a direct filesystem/inode pair, since a cwd is always a
// directory inode, not an independently-refcounted open descriptor.
type Cwd_t struct {
	mu   sync.Mutex
	Fsys *fs.Filesystem
	Ino  *fs.Inode
	Path string
}

// MkRootCwd constructs a Cwd_t rooted at "/".
func MkRootCwd(fsys *fs.Filesystem, root *fs.Inode) *Cwd_t {
	return &Cwd_t{Fsys: fsys, Ino: root, Path: "/"}
}

// Fullpath joins cwd with p if p is not already absolute.
func (cwd *Cwd_t) Fullpath(p string) string {
	cwd.mu.Lock()
	defer cwd.mu.Unlock()
	if strings.HasPrefix(p, "/") {
		return p
	}
	return cwd.Path + "/" + p
}

// Canonicalpath resolves path components (".", "..", repeated slashes)
// relative to cwd, without touching the filesystem -- purely lexical, the
// same scope as path.Clean.
func (cwd *Cwd_t) Canonicalpath(p string) string {
	return path.Clean(cwd.Fullpath(p))
}
