package server

import (
	netsocket "github.com/loqix/NetworkSocket"
)

// connPool recycles engine connections across bindings so an accepted
// socket can be bound to an already-allocated Conn. Overflow connections
// are simply discarded by the caller.
type connPool struct {
	queue chan *netsocket.Conn
}

func newConnPool(capacity int) *connPool {
	if capacity < 0 {
		capacity = 0
	}
	return &connPool{queue: make(chan *netsocket.Conn, capacity)}
}

// get returns a pooled connection, or a fresh one when the pool is empty.
func (p *connPool) get(fresh func() *netsocket.Conn) *netsocket.Conn {
	select {
	case c := <-p.queue:
		return c
	default:
		return fresh()
	}
}

// put offers an unbound connection back for reuse. It reports whether the
// pool kept it.
func (p *connPool) put(c *netsocket.Conn) bool {
	select {
	case p.queue <- c:
		return true
	default:
		return false
	}
}

// drain disposes every pooled connection.
func (p *connPool) drain() {
	for {
		select {
		case c := <-p.queue:
			c.Close()
		default:
			return
		}
	}
}
