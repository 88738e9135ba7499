package proc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vimix/fd"
	"vimix/spinlock"
)

// TestPipePingPongBlocksAndWakes exercises spec.md 8's testable property
// 1: a reader blocked on an empty pipe actually blocks (does not busy
// spin or return early) and wakes exactly when a writer supplies data,
// now that this package's init has installed spinlock.Sleeper/Waker so
// fd.Pipe_t's blocking paths are live instead of panicking.
func TestPipePingPongBlocksAndWakes(t *testing.T) {
	p := fd.NewPipe()
	results := make(chan string, 4)

	go func() {
		buf := make([]byte, 3)
		n, err := p.Read(hart0, buf)
		require.Zero(t, err)
		results <- string(buf[:n])
	}()

	time.Sleep(20 * time.Millisecond) // give the reader time to block

	n, err := p.Write(spinlock.HartID(1), []byte("hey"))
	require.Zero(t, err)
	require.Equal(t, 3, n)

	select {
	case got := <-results:
		require.Equal(t, "hey", got)
	case <-time.After(2 * time.Second):
		t.Fatal("reader never woke up after write")
	}
}
