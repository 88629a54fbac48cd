// Package relay provides buffer-pooled bidirectional byte copying shared by
// the raw-TCP content source, the TCP-over-SSH listener, and any other
// full-duplex pass-through in the proxy.
package relay

import (
	"io"
	"sync"
)

// PoolSize is the size of each buffer handed out by the pool.
const PoolSize = 32 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, PoolSize)
		return &buf
	},
}

// CopyBuffered copies from src to dst using a pooled buffer, avoiding a fresh
// allocation per call the way a plain io.Copy would.
func CopyBuffered(dst io.Writer, src io.Reader) (int64, error) {
	bufp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufp)
	return io.CopyBuffer(dst, src, *bufp)
}

// Bidirectional copies data between a and b in both directions concurrently
// until either side reaches EOF or errors, then closes both halves so the
// other direction's copy unblocks. It returns once both directions have
// finished.
func Bidirectional(a, b io.ReadWriteCloser) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		CopyBuffered(b, a)
		b.Close()
	}()

	go func() {
		defer wg.Done()
		CopyBuffered(a, b)
		a.Close()
	}()

	wg.Wait()
}
