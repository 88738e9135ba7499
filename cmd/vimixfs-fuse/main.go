// Command vimixfs-fuse mounts a vimixfs/xv6fs disk image read-only on
// the host, for debugging a filesystem image without a running vimix
// instance. This is supplemental tooling SPEC_FULL.md 4 adds beyond
// spec.md to give github.com/hanwen/go-fuse a real home; spec.md 1's
// "external collaborators" framing anticipates exactly this kind of
// outer-surface inspector being built around the core rather than
// inside it.
//
// Grounded on the hanwen-go-fuse in-memory/zip example shape (an
// OnAdd-populated persistent inode tree, a custom leaf type providing
// Getattr/Open/Read) translated from an in-memory byte map / zip
// archive source to this repository's fs.Filesystem as the backing
// store.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/spf13/cobra"

	"vimix/bio"
	vfs "vimix/fs"
	txlog "vimix/log"
	"vimix/spinlock"
)

const hart0 = spinlock.HartID(0)

var (
	imagePath  string
	totalBlock uint32
	mountDir   string
	debugFuse  bool
)

var rootCmd = &cobra.Command{
	Use:   "vimixfs-fuse",
	Short: "Mount a vimixfs/xv6fs image read-only via FUSE",
	RunE:  runMount,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&imagePath, "image", "", "path to a disk image formatted by mkfs (required)")
	flags.Uint32Var(&totalBlock, "blocks", 20000, "total blocks in the image (must match what mkfs used)")
	flags.StringVar(&mountDir, "mountpoint", "", "host directory to mount the image on (required)")
	flags.BoolVar(&debugFuse, "debug", false, "log every FUSE request")
	rootCmd.MarkFlagRequired("image")
	rootCmd.MarkFlagRequired("mountpoint")
}

// vimixRoot is the root of the mounted tree; OnAdd walks the vimix
// filesystem's root directory and builds a matching persistent inode
// tree, the same shape as the in-memory/zip examples' populate-on-mount
// idiom.
type vimixRoot struct {
	fs.Inode

	fsys *vfs.Filesystem
	ino  *vfs.Inode
}

var _ = (fs.NodeOnAdder)((*vimixRoot)(nil))

func (r *vimixRoot) OnAdd(ctx context.Context) {
	populate(ctx, &r.Inode, r.fsys, r.ino)
}

func populate(ctx context.Context, parent *fs.Inode, fsys *vfs.Filesystem, dir *vfs.Inode) {
	dir.Lock(hart0, fsys)
	entries := fsys.Readdir(hart0, dir)
	dir.Unlock(hart0)

	for _, ent := range entries {
		child := fsys.Get(hart0, ent.Inum)
		child.Lock(hart0, fsys)
		typ := child.Type
		size := child.Size
		child.Unlock(hart0)

		switch typ {
		case vfs.TypeDir:
			dirNode := parent.NewPersistentInode(ctx, &fs.Inode{}, fs.StableAttr{Mode: syscall.S_IFDIR})
			parent.AddChild(ent.Name, dirNode, true)
			populate(ctx, dirNode, fsys, child)
		case vfs.TypeFile:
			leaf := &vimixFile{fsys: fsys, ino: child, size: size}
			fileNode := parent.NewPersistentInode(ctx, leaf, fs.StableAttr{Mode: syscall.S_IFREG})
			parent.AddChild(ent.Name, fileNode, true)
		default:
			// device inodes have no host-side FUSE representation here;
			// spec.md 4.6's device major/minor pair is a kernel-internal
			// concept this read-only inspector does not expose.
		}
	}
}

// vimixFile is a regular-file leaf, backed by one vimix Inode. Content
// is decoded lazily on first Open and cached, mirroring the zip
// example's zipFile: the underlying vimix image is immutable for the
// life of this mount (it is opened read-write only so the log can
// replay on open; nothing here ever calls fsys.Write).
type vimixFile struct {
	fs.Inode

	fsys *vfs.Filesystem
	ino  *vfs.Inode
	size uint32

	mu   sync.Mutex
	data []byte
}

var _ = (fs.NodeGetattrer)((*vimixFile)(nil))
var _ = (fs.NodeOpener)((*vimixFile)(nil))
var _ = (fs.NodeReader)((*vimixFile)(nil))

func (f *vimixFile) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Size = uint64(f.size)
	out.Mode = syscall.S_IFREG | 0444
	return fs.OK
}

func (f *vimixFile) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		buf := make([]byte, f.size)
		f.ino.Lock(hart0, f.fsys)
		_, err := f.fsys.Read(hart0, f.ino, buf, 0)
		f.ino.Unlock(hart0)
		if err != 0 {
			return nil, 0, syscall.EIO
		}
		f.data = buf
	}
	return nil, fuse.FOPEN_KEEP_CACHE, fs.OK
}

func (f *vimixFile) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	end := int(off) + len(dest)
	if end > len(f.data) {
		end = len(f.data)
	}
	if int(off) > end {
		return fuse.ReadResultData(nil), fs.OK
	}
	return fuse.ReadResultData(f.data[off:end]), fs.OK
}

func runMount(cmd *cobra.Command, args []string) error {
	disk, err := bio.OpenFileDisk(imagePath, int(totalBlock), 0)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	defer disk.Close()

	cache := bio.NewCache(disk, 256)
	sb := vfs.ReadSuperblock(hart0, cache, 0)
	l := txlog.Open(cache, 0, uint64(sb.LogStart), uint64(sb.NLog))
	fsys := vfs.Open(0, sb, cache, l, 64)
	root := fsys.Get(hart0, 1)

	rootNode := &vimixRoot{fsys: fsys, ino: root}
	server, err := fs.Mount(mountDir, rootNode, &fs.Options{
		MountOptions: fuse.MountOptions{Debug: debugFuse, Name: "vimixfs", FsName: imagePath},
	})
	if err != nil {
		return fmt.Errorf("mounting: %w", err)
	}

	fmt.Printf("%s mounted read-only on %s (uuid %x); unmount with fusermount -u %s\n", imagePath, mountDir, sb.UUID, mountDir)
	server.Wait()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
