// Package log implements the write-ahead redo log described in
// spec.md 4.5: a fixed region of the block device holds a header block
// followed by payload slots; filesystem calls are grouped into
// transactions that commit atomically by overwriting the header.
// Grounded line-for-line on
// original_source/kernel/fs/xv6fs/log.c (log_begin_fs_transaction,
// log_end_fs_transaction, log_write, commit/write_log/write_head/
// install_trans, recover_from_log), translated from the C's single
// global `struct log` + sleep(&g_log, &g_log.lock)/wakeup(&g_log) into
// a Go type using the spinlock package's injected Sleeper/Waker hooks
// in place of the raw-address sleep channel (spec.md 9's "condvar per
// structure" redesign).
package log

import (
	"encoding/binary"
	"fmt"

	"vimix/bio"
	"vimix/spinlock"
)

// MaxOpBlocks bounds the worst-case number of distinct blocks a single
// filesystem call may write inside one transaction; LogSize is sized
// as a small multiple of it, following the xv6-lineage convention that
// NBUF and LOGSIZE are both derived from MAXOPBLOCKS.
const (
	MaxOpBlocks = 10
	LogSize     = 3 * MaxOpBlocks
)

// header is the on-disk and in-memory log header: count n and the list
// of destination block numbers for each logged slot.
type header struct {
	n      int32
	blocks [LogSize]uint64
}

func (h *header) encode(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.n))
	for i := int32(0); i < h.n; i++ {
		binary.LittleEndian.PutUint64(buf[4+8*i:4+8*i+8], h.blocks[i])
	}
}

func (h *header) decode(buf []byte) {
	h.n = int32(binary.LittleEndian.Uint32(buf[0:4]))
	for i := int32(0); i < h.n; i++ {
		h.blocks[i] = binary.LittleEndian.Uint64(buf[4+8*i : 4+8*i+8])
	}
}

// Log is the in-memory transaction log state, one per filesystem.
type Log struct {
	mu          *spinlock.Mutex
	start       uint64 // log region's first block (the header)
	size        uint64 // number of blocks in the log region, header included
	dev         int
	cache       *bio.Cache
	outstanding int32
	committing  bool
	lh          header
}

// Open recovers the log region [start, start+size) on dev from any
// interrupted transaction left by a prior run, per spec.md 4.5's
// "Recovery at mount".
func Open(cache *bio.Cache, dev int, start, size uint64) *Log {
	l := &Log{
		mu:    spinlock.NewMutex("log"),
		start: start,
		size:  size,
		dev:   dev,
		cache: cache,
	}
	l.recover(spinlock.HartID(0))
	return l
}

func (l *Log) readHead(hart spinlock.HartID) {
	b, err := l.cache.Read(hart, l.dev, l.start)
	if err != nil {
		panic(fmt.Sprintf("log: read head: %v", err))
	}
	l.lh.decode(b.Data[:])
	l.cache.Release(hart, b)
}

func (l *Log) writeHead(hart spinlock.HartID) {
	b, err := l.cache.Read(hart, l.dev, l.start)
	if err != nil {
		panic(fmt.Sprintf("log: read head: %v", err))
	}
	l.lh.encode(b.Data[:])
	if err := l.cache.Write(b); err != nil {
		panic(fmt.Sprintf("log: write head: %v", err))
	}
	l.cache.Release(hart, b)
}

// installTrans copies every logged block from its log slot to its home
// location. recovering suppresses the Unpin call, since no Pin was
// taken this boot.
func (l *Log) installTrans(hart spinlock.HartID, recovering bool) {
	for tail := int32(0); tail < l.lh.n; tail++ {
		lbuf, err := l.cache.Read(hart, l.dev, l.start+uint64(tail)+1)
		if err != nil {
			panic(fmt.Sprintf("log: read log slot: %v", err))
		}
		dbuf, err := l.cache.Read(hart, l.dev, l.lh.blocks[tail])
		if err != nil {
			panic(fmt.Sprintf("log: read home block: %v", err))
		}
		dbuf.Data = lbuf.Data
		if err := l.cache.Write(dbuf); err != nil {
			panic(fmt.Sprintf("log: write home block: %v", err))
		}
		if !recovering {
			l.cache.Unpin(dbuf)
		}
		l.cache.Release(hart, lbuf)
		l.cache.Release(hart, dbuf)
	}
}

func (l *Log) recover(hart spinlock.HartID) {
	l.readHead(hart)
	l.installTrans(hart, true)
	l.lh.n = 0
	l.writeHead(hart)
}

// Begin implements log_begin_fs_transaction: block (sleep on the log)
// while a commit is in flight or this call might exhaust log space,
// per spec.md 4.5's invariant `n + (outstanding+1)*MAX_OP_BLOCKS <=
// LOGSIZE`.
func (l *Log) Begin(hart spinlock.HartID) {
	l.mu.Acquire(hart)
	for {
		if l.committing {
			spinlock.Sleeper(l, l.mu, hart)
			continue
		}
		if int(l.lh.n)+int(l.outstanding+1)*MaxOpBlocks > LogSize {
			spinlock.Sleeper(l, l.mu, hart)
			continue
		}
		l.outstanding++
		l.mu.Release(hart)
		return
	}
}

// End implements log_end_fs_transaction: decrement outstanding; the
// last one out runs commit (without the log lock held, since commit
// may sleep via buffer I/O).
func (l *Log) End(hart spinlock.HartID) {
	l.mu.Acquire(hart)
	l.outstanding--
	if l.committing {
		panic("log: committing set while ending a transaction")
	}
	doCommit := false
	if l.outstanding == 0 {
		doCommit = true
		l.committing = true
	} else if spinlock.Waker != nil {
		spinlock.Waker(l)
	}
	l.mu.Release(hart)

	if doCommit {
		l.commit(hart)
		l.mu.Acquire(hart)
		l.committing = false
		if spinlock.Waker != nil {
			spinlock.Waker(l)
		}
		l.mu.Release(hart)
	}
}

func (l *Log) writeLog(hart spinlock.HartID) {
	for tail := int32(0); tail < l.lh.n; tail++ {
		to, err := l.cache.Read(hart, l.dev, l.start+uint64(tail)+1)
		if err != nil {
			panic(fmt.Sprintf("log: read log slot: %v", err))
		}
		from, err := l.cache.Read(hart, l.dev, l.lh.blocks[tail])
		if err != nil {
			panic(fmt.Sprintf("log: read cache block: %v", err))
		}
		to.Data = from.Data
		if err := l.cache.Write(to); err != nil {
			panic(fmt.Sprintf("log: write log slot: %v", err))
		}
		l.cache.Release(hart, from)
		l.cache.Release(hart, to)
	}
}

// commit runs the four-step protocol of spec.md 4.5: write_log,
// write_head (the atomic commit point), install_trans, then a second
// write_head to erase the transaction.
func (l *Log) commit(hart spinlock.HartID) {
	if l.lh.n == 0 {
		return
	}
	l.writeLog(hart)
	l.writeHead(hart)
	l.installTrans(hart, false)
	l.lh.n = 0
	l.writeHead(hart)
}

// Write implements log_write: called with b's sleeplock already held
// by the caller, inside a Begin/End transaction. Absorbs repeated
// writes to the same block into a single log slot.
func (l *Log) Write(hart spinlock.HartID, b *bio.Buf) {
	l.mu.Acquire(hart)
	defer l.mu.Release(hart)
	if l.lh.n >= LogSize || int(l.lh.n) >= int(l.size)-1 {
		panic("log: transaction too big")
	}
	if l.outstanding < 1 {
		panic("log: write outside of transaction")
	}
	i := int32(0)
	for ; i < l.lh.n; i++ {
		if l.lh.blocks[i] == b.Blockno {
			break
		}
	}
	l.lh.blocks[i] = b.Blockno
	if i == l.lh.n {
		l.cache.Pin(b)
		l.lh.n++
	}
}
