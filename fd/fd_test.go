package fd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"vimix/bio"
	"vimix/fs"
	"vimix/spinlock"
)

const hart0 = spinlock.HartID(0)

func TestPipeWriteThenReadRoundtrip(t *testing.T) {
	p := NewPipe()
	n, err := p.Write(hart0, []byte("hello"))
	require.Zero(t, err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	rn, err := p.Read(hart0, buf)
	require.Zero(t, err)
	require.Equal(t, 5, rn)
	require.Equal(t, "hello", string(buf))
}

func TestPipeReadAfterWriterClosedDrainsThenEOF(t *testing.T) {
	p := NewPipe()
	p.Write(hart0, []byte("ab"))
	p.CloseWriter(hart0)

	buf := make([]byte, 2)
	n, err := p.Read(hart0, buf)
	require.Zero(t, err)
	require.Equal(t, 2, n)

	n, err = p.Read(hart0, buf)
	require.Zero(t, err)
	require.Equal(t, 0, n)
}

func TestPipeWriteAfterReaderClosedFails(t *testing.T) {
	p := NewPipe()
	p.CloseReader(hart0)
	n, err := p.Write(hart0, []byte("x"))
	require.NotZero(t, err)
	require.Equal(t, 0, n)
}

func setupFS(t *testing.T) *fs.Filesystem {
	t.Helper()
	sb := fs.MkfsLayout(fs.XV6FS, 2000, 30, 200)
	disk := bio.NewMemDisk()
	cache := bio.NewCache(disk, 128)
	return fs.Mkfs(hart0, cache, 0, sb)
}

func TestFileInodeWriteReadAdvancesOffset(t *testing.T) {
	fsys := setupFS(t)

	fsys.Begin(hart0)
	ip, err := fsys.Alloc(hart0, fs.TypeFile)
	require.Zero(t, err)
	ip.Lock(hart0, fsys)
	ip.Nlink = 1
	fsys.Update(hart0, ip)
	ip.Unlock(hart0)
	fsys.End(hart0)

	f := NewInodeFile(fsys, ip, true, true)
	n, err := f.Write(hart0, []byte("abc"))
	require.Zero(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, uint32(3), f.Off)

	buf := make([]byte, 3)
	off, err := f.Lseek(hart0, 0, 0)
	require.Zero(t, err)
	require.Equal(t, uint32(0), off)
	rn, err := f.Read(hart0, buf)
	require.Zero(t, err)
	require.Equal(t, 3, rn)
	require.Equal(t, "abc", string(buf))
}

func TestFdCopyfdSharesFileAndBumpsRef(t *testing.T) {
	p := NewPipe()
	f := NewPipeFile(p, true, true)
	orig := &Fd_t{File: f, Perms: FD_READ}
	dup := Copyfd(hart0, orig)
	require.Same(t, orig.File, dup.File)
	require.Equal(t, 2, f.ref)
}
