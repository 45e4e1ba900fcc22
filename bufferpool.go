package netsocket

import (
	"sync"
)

// transferPool reuses transfer chunks across connections. The receive and
// send loops each borrow a chunk for the lifetime of their loop and return
// it on exit, so a reclaimed chunk can never be touched by a straggling
// completion. Chunks are pooled per size, one class per configured chunk
// size in use.
type transferPool struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool // keyed by buffer size
}

// Global transfer buffer pool instance.
var globalTransferPool = &transferPool{pools: make(map[int]*sync.Pool)}

// getBuffer retrieves a transfer buffer of exactly size bytes.
func (tp *transferPool) getBuffer(size int) []byte {
	tp.mu.Lock()
	p, ok := tp.pools[size]
	if !ok {
		p = &sync.Pool{
			New: func() any {
				return make([]byte, size)
			},
		}
		tp.pools[size] = p
	}
	tp.mu.Unlock()

	return p.Get().([]byte)
}

// putBuffer returns a transfer buffer to the pool.
func (tp *transferPool) putBuffer(buf []byte) {
	tp.mu.Lock()
	p, ok := tp.pools[len(buf)]
	tp.mu.Unlock()
	if !ok {
		return // never handed out by this pool
	}
	p.Put(buf)
}
