// Package bufpool provides reusable copy buffers for content streaming.
//
// Every byte of content a WebDAV server moves (GET, PUT, item copies)
// flows through a transfer buffer. Pooling those buffers with sync.Pool
// removes the per-request allocation and the GC pressure it causes under
// sustained transfer load.
package bufpool

import (
	"sync"
)

// copyBufferSize is the size of one transfer buffer. 32KB matches the
// copy granularity used by io.Copy for files and keeps pooled memory
// modest even with many concurrent transfers.
const copyBufferSize = 32 << 10

var pool = sync.Pool{
	New: func() any {
		buf := make([]byte, copyBufferSize)
		return &buf
	},
}

// Get returns a transfer buffer from the pool.
//
// The caller must return it with Put when finished. Failing to call Put
// does not leak memory (the buffer is simply collected), it just forfeits
// reuse.
func Get() []byte {
	return *pool.Get().(*[]byte)
}

// Put returns a buffer obtained from Get to the pool.
// The buffer must not be used after Put.
func Put(buf []byte) {
	if cap(buf) != copyBufferSize {
		return
	}
	full := buf[:cap(buf)]
	pool.Put(&full)
}
