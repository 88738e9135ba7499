package fs

import (
	"strings"

	"vimix/defs"
	"vimix/spinlock"
)

// MountTable maps a mounted-on inode (identified by its dev/inum) to
// the filesystem mounted there, letting path resolution cross mount
// boundaries (spec.md 4.6's "at each step follow mount boundaries").
// Resolved per the DESIGN.md Open Question decision: a fixed-size
// table of back-pointers, guarded by its own lock, acquired before
// ever locking a mountpoint inode (never the reverse), grounded on
// original_source/kernel/fs/mount.c's get_free_super_block shape.
type MountTable struct {
	mu      *spinlock.Mutex
	entries []mountEntry
}

type mountEntry struct {
	used      bool
	onDev     int
	onInum    uint32
	mountedFs *Filesystem
	rootInum  uint32
}

// NewMountTable returns a table with room for n simultaneous mounts.
func NewMountTable(n int) *MountTable {
	return &MountTable{mu: spinlock.NewMutex("mounttable"), entries: make([]mountEntry, n)}
}

// Mount records that dev/inum is now a mount point for target,
// whose root inode is rootInum.
func (mt *MountTable) Mount(dev int, inum uint32, target *Filesystem, rootInum uint32) defs.Err_t {
	mt.mu.Acquire(0)
	defer mt.mu.Release(0)
	for i := range mt.entries {
		if !mt.entries[i].used {
			mt.entries[i] = mountEntry{used: true, onDev: dev, onInum: inum, mountedFs: target, rootInum: rootInum}
			return 0
		}
	}
	return -defs.EMFILE
}

// Unmount removes a mount-point entry by the underlying inode it was
// mounted on.
func (mt *MountTable) Unmount(dev int, inum uint32) defs.Err_t {
	mt.mu.Acquire(0)
	defer mt.mu.Release(0)
	for i := range mt.entries {
		if mt.entries[i].used && mt.entries[i].onDev == dev && mt.entries[i].onInum == inum {
			mt.entries[i] = mountEntry{}
			return 0
		}
	}
	return -defs.EINVAL
}

// resolveMount returns the mounted filesystem and root inum if
// dev/inum is a mount point, else ok=false. Acquired without ever
// holding an inode's sleeplock, per the lock-ordering decision above.
func (mt *MountTable) resolveMount(dev int, inum uint32) (*Filesystem, uint32, bool) {
	mt.mu.Acquire(0)
	defer mt.mu.Release(0)
	for _, e := range mt.entries {
		if e.used && e.onDev == dev && e.onInum == inum {
			return e.mountedFs, e.rootInum, true
		}
	}
	return nil, 0, false
}

// Resolver walks paths to inodes across a possibly-mounted set of
// filesystems, per spec.md 4.6's path-resolution description.
type Resolver struct {
	Mounts *MountTable
	Root   *Filesystem // the filesystem mounted at "/"
	RootIno uint32
}

// rootInode returns root's root-directory inode, ref'd.
func (r *Resolver) rootInode(hart spinlock.HartID) (*Filesystem, *Inode) {
	return r.Root, r.Root.Get(hart, r.RootIno)
}

// Lookup resolves path to an inode, starting from cwd (or the root if
// path is absolute or cwd is nil). Symbolic links are not handled,
// per spec.md 4.6's explicit silence on them.
func (r *Resolver) Lookup(hart spinlock.HartID, cwdFs *Filesystem, cwdIno *Inode, path string) (*Filesystem, *Inode, defs.Err_t) {
	var curFs *Filesystem
	var cur *Inode
	if strings.HasPrefix(path, "/") || cwdIno == nil {
		curFs, cur = r.rootInode(hart)
	} else {
		curFs = cwdFs
		cur = cwdFs.Dup(hart, cwdIno)
	}

	parts := strings.Split(path, "/")
	for _, name := range parts {
		if name == "" || name == "." {
			continue
		}
		cur.Lock(hart, curFs)
		if cur.Type != TypeDir {
			cur.Unlock(hart)
			curFs.Put(hart, cur)
			return nil, nil, -defs.ENOTDIR
		}
		inum, _, ok := curFs.DirLookup(hart, cur, name)
		cur.Unlock(hart)
		if !ok {
			curFs.Put(hart, cur)
			return nil, nil, -defs.ENOENT
		}
		next := curFs.Get(hart, inum)
		curFs.Put(hart, cur)
		cur, curFs = next, curFs
		if mfs, rootInum, ok := r.Mounts.resolveMount(curFs.Dev, cur.Inum); ok {
			curFs.Put(hart, cur)
			curFs = mfs
			cur = curFs.Get(hart, rootInum)
		}
	}
	return curFs, cur, 0
}

// LookupParent resolves all but the last path component, returning the
// parent directory inode and the final component's name.
func (r *Resolver) LookupParent(hart spinlock.HartID, cwdFs *Filesystem, cwdIno *Inode, path string) (*Filesystem, *Inode, string, defs.Err_t) {
	path = strings.TrimSuffix(path, "/")
	i := strings.LastIndex(path, "/")
	var dir, base string
	if i < 0 {
		dir, base = ".", path
	} else if i == 0 {
		dir, base = "/", path[1:]
	} else {
		dir, base = path[:i], path[i+1:]
	}
	if base == "" {
		return nil, nil, "", -defs.EINVAL
	}
	pfs, pino, err := r.Lookup(hart, cwdFs, cwdIno, dir)
	if err != 0 {
		return nil, nil, "", err
	}
	return pfs, pino, base, 0
}
