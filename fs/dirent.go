package fs

import (
	"encoding/binary"

	"vimix/defs"
	"vimix/spinlock"

	"golang.org/x/text/unicode/norm"
)

// DirentSize is the fixed size of one directory record: a u16 inum
// followed by a NAME_MAX-byte name field, per spec.md 6.
const DirentSize = 2 + NameMax

// normalizeName truncates a directory name to NAME_MAX bytes without
// splitting a multi-byte rune, using golang.org/x/text/unicode/norm's
// boundary-aware iteration (wired per SPEC_FULL.md 3's "Filename/UTF-8
// safety" domain-stack entry) -- the teacher's own xv6fs format cannot
// detect a split rune itself, so safety has to be enforced before the
// bytes ever reach the dirent.
func normalizeName(name string) string {
	if len(name) <= NameMax {
		return name
	}
	var iter norm.Iter
	iter.InitString(norm.NFC, name)
	cut := 0
	for !iter.Done() {
		b := iter.Next()
		if cut+len(b) > NameMax {
			break
		}
		cut += len(b)
	}
	return name[:cut]
}

func encodeDirent(inum uint16, name string) [DirentSize]byte {
	var d [DirentSize]byte
	binary.LittleEndian.PutUint16(d[0:2], inum)
	copy(d[2:], normalizeName(name))
	return d
}

func decodeDirent(buf []byte) (inum uint16, name string) {
	inum = binary.LittleEndian.Uint16(buf[0:2])
	nb := buf[2:DirentSize]
	end := 0
	for end < len(nb) && nb[end] != 0 {
		end++
	}
	return inum, string(nb[:end])
}

// DirLookup scans dir's data blocks for name, returning the matching
// inode number and the byte offset of its dirent (for DirLink reuse),
// or ok=false. dir's sleeplock must be held. Per spec.md 4.6.
func (fsys *Filesystem) DirLookup(hart spinlock.HartID, dir *Inode, name string) (inum uint32, off uint32, ok bool) {
	if dir.Type != TypeDir {
		panic("fs: DirLookup of non-directory")
	}
	var buf [DirentSize]byte
	for o := uint32(0); o < dir.Size; o += DirentSize {
		n, _ := fsys.Read(hart, dir, buf[:], o)
		if n != DirentSize {
			break
		}
		di, dn := decodeDirent(buf[:])
		if di != 0 && dn == name {
			return uint32(di), o, true
		}
	}
	return 0, 0, false
}

// Dirent is one decoded directory entry, for callers outside this
// package that need to enumerate a directory (cmd/vimixfs-fuse) rather
// than look up a single name.
type Dirent struct {
	Inum uint32
	Name string
}

// Readdir returns every non-empty entry in dir, in on-disk order,
// skipping "." and "..". dir's sleeplock must be held. Supplements
// DirLookup's single-name search for the FUSE inspector's tree walk.
func (fsys *Filesystem) Readdir(hart spinlock.HartID, dir *Inode) []Dirent {
	if dir.Type != TypeDir {
		panic("fs: Readdir of non-directory")
	}
	var out []Dirent
	var buf [DirentSize]byte
	for o := uint32(0); o < dir.Size; o += DirentSize {
		n, _ := fsys.Read(hart, dir, buf[:], o)
		if n != DirentSize {
			break
		}
		inum, name := decodeDirent(buf[:])
		if inum == 0 || name == "." || name == ".." {
			continue
		}
		out = append(out, Dirent{Inum: uint32(inum), Name: name})
	}
	return out
}

// DirLink appends a new dirent {name, inum} to dir, reusing the first
// zero-inum slot found, per spec.md 4.6's dir_link. Must run inside a
// log transaction and with dir's sleeplock held.
func (fsys *Filesystem) DirLink(hart spinlock.HartID, dir *Inode, name string, inum uint32) defs.Err_t {
	if _, _, ok := fsys.DirLookup(hart, dir, name); ok {
		return -defs.EINVAL
	}
	var buf [DirentSize]byte
	off := dir.Size
	for o := uint32(0); o < dir.Size; o += DirentSize {
		n, _ := fsys.Read(hart, dir, buf[:], o)
		if n != DirentSize {
			break
		}
		di, _ := decodeDirent(buf[:])
		if di == 0 {
			off = o
			break
		}
	}
	d := encodeDirent(uint16(inum), name)
	n, err := fsys.writeTx(hart, dir, d[:], off)
	if err != 0 || n != DirentSize {
		return -defs.EOTHER
	}
	return 0
}
