package netsocket

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// DefaultChunkSize is the per-transmission cap and the receive read size.
const DefaultChunkSize = 8 * 1024

var (
	// ErrClosed indicates the connection has been disposed.
	ErrClosed = errors.New("netsocket: connection is closed")

	// ErrNotBound indicates the connection has no live socket.
	ErrNotBound = errors.New("netsocket: connection is not bound")

	// ErrAlreadyBound indicates Bind was called on a bound connection.
	ErrAlreadyBound = errors.New("netsocket: connection is already bound")

	// ErrMissingCallbacks indicates receiving was started without a decode
	// or dispatch callback installed.
	ErrMissingCallbacks = errors.New("netsocket: decode and dispatch callbacks are required")
)

// ConnConfig wires a Conn to its collaborator. The four callbacks must be
// installed before any activity starts.
type ConnConfig struct {
	// OnSend observes every packet handed to Send, whether or not it is
	// ultimately transmitted.
	OnSend func(Packet)

	// Decode extracts packets from the receive buffer. See DecodeFunc.
	Decode DecodeFunc

	// OnPacket receives decoded packets in wire order. With the default
	// synchronous dispatch it runs on the receive path and must not block
	// indefinitely.
	OnPacket func(Packet)

	// OnClose is the disconnect notification, fired at most once per
	// binding from whichever teardown path wins.
	OnClose func()

	// ChunkSize caps the bytes handed to one transmission and sizes the
	// receive reads. Default is DefaultChunkSize.
	ChunkSize int

	// AsyncDispatch hands decoded packets to an ordered per-connection
	// worker instead of running OnPacket on the receive path. Wire order
	// is preserved either way. On teardown the worker drops undelivered
	// packets before the disconnect notification fires; one packet already
	// inside OnPacket may finish delivery concurrently with it.
	AsyncDispatch bool

	// KeepAlive is applied to the socket at bind time, best effort.
	KeepAlive KeepAliveConfig

	// Logger for connection lifecycle events. Nil disables logging.
	Logger *zerolog.Logger
}

func (c *ConnConfig) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
}

// binding is the state owned by one bound period of a Conn. A fresh
// binding is created on Bind and detached by the winning reset, so
// completions that straggle from an old binding can never touch the state
// of a newer one.
type binding struct {
	sock      net.Conn
	remote    net.Addr
	recvBuf   *ByteBuilder
	sendBuf   *ByteBuilder
	sending   atomic.Bool
	receiving atomic.Bool
	disp      *dispatcher
}

// Conn turns one live socket into a reliable, ordered, bidirectional
// packet channel. It is created once and rebound to successive sockets
// (bind, use, reset, rebind), or used fresh per accepted connection.
//
// Three independent locks cover its state: the receive buffer's lock, the
// send buffer's lock, and the reset guard. None is held while acquiring
// another.
type Conn struct {
	cfg ConnConfig
	log zerolog.Logger

	resetMu sync.Mutex // reset guard: serializes bind and unbind
	bind    *binding   // nil when unbound

	closed atomic.Bool
	tags   *TagStore
}

// NewConn creates an unbound connection.
func NewConn(cfg ConnConfig) *Conn {
	cfg.applyDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Conn{
		cfg:  cfg,
		log:  log,
		tags: newTagStore(),
	}
}

// Bind installs a live socket, captures the remote endpoint and applies
// keep-alive. The connection must be unbound.
func (c *Conn) Bind(sock net.Conn) error {
	if sock == nil {
		return ErrNotBound
	}

	b := &binding{
		sock:    sock,
		remote:  sock.RemoteAddr(),
		recvBuf: NewByteBuilder(c.cfg.ChunkSize),
		sendBuf: NewByteBuilder(c.cfg.ChunkSize),
	}
	if c.cfg.AsyncDispatch {
		b.disp = newDispatcher(c.dispatch)
	}

	c.resetMu.Lock()
	if c.closed.Load() || c.bind != nil {
		alreadyBound := c.bind != nil
		c.resetMu.Unlock()
		if b.disp != nil {
			b.disp.stop()
		}
		if alreadyBound {
			return ErrAlreadyBound
		}
		return ErrClosed
	}
	c.bind = b
	c.resetMu.Unlock()

	if err := applyKeepAlive(sock, c.cfg.KeepAlive); err != nil {
		c.log.Debug().Err(err).Msg("keep-alive not applied")
	}
	connsActive.Inc()
	c.log.Debug().Stringer("remote", b.remote).Msg("connection bound")
	return nil
}

// IsClosed reports whether the connection has been disposed. A closed
// connection can never be rebound.
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// IsConnected reports whether a live socket is bound.
func (c *Conn) IsConnected() bool {
	c.resetMu.Lock()
	ok := c.bind != nil
	c.resetMu.Unlock()
	return ok
}

// RemoteAddr returns the remote endpoint, or nil when unbound.
func (c *Conn) RemoteAddr() net.Addr {
	c.resetMu.Lock()
	b := c.bind
	c.resetMu.Unlock()
	if b == nil {
		return nil
	}
	return b.remote
}

// Tags is the session-scoped key/value store for this connection. It is
// cleared on every reset.
func (c *Conn) Tags() *TagStore {
	return c.tags
}

func (c *Conn) current() *binding {
	c.resetMu.Lock()
	b := c.bind
	c.resetMu.Unlock()
	return b
}

// BeginReceive starts the asynchronous receive pipeline for the current
// binding. It may be started once per binding.
func (c *Conn) BeginReceive() error {
	if c.cfg.Decode == nil || c.cfg.OnPacket == nil {
		return ErrMissingCallbacks
	}
	b := c.current()
	if b == nil {
		return ErrNotBound
	}
	if !b.receiving.CompareAndSwap(false, true) {
		return nil
	}
	go c.receiveLoop(b)
	return nil
}

// receiveLoop is the iterative continuation of the receive pipeline: read,
// append under the receive lock, drain complete packets, repeat. Any
// transport failure or zero-byte transfer is a disconnection.
func (c *Conn) receiveLoop(b *binding) {
	chunk := globalTransferPool.getBuffer(c.cfg.ChunkSize)
	defer globalTransferPool.putBuffer(chunk)

	// the reset winner never takes the receive lock (dispatch callbacks run
	// under it), so leftover partial frames are discarded here instead
	defer func() {
		b.recvBuf.Lock()
		b.recvBuf.Clear()
		b.recvBuf.Unlock()
	}()

	for {
		n, err := b.sock.Read(chunk)
		if n > 0 {
			bytesReceived.Add(float64(n))
			b.recvBuf.Lock()
			b.recvBuf.Add(chunk[:n])
			derr := c.drainPackets(b)
			b.recvBuf.Unlock()
			if derr != nil {
				c.log.Warn().Err(derr).Msg("framing error")
				c.disconnect(b)
				return
			}
		}
		if err != nil || n == 0 {
			c.disconnect(b)
			return
		}
		if c.current() != b {
			// unbound while draining; the reset winner already ran
			c.disconnect(b)
			return
		}
	}
}

// drainPackets decodes as many complete packets as the buffered bytes
// allow. Caller holds the receive buffer's lock, so packets are delivered
// in wire order and never interleaved with another completion's pass.
func (c *Conn) drainPackets(b *binding) error {
	for {
		pkt, err := c.cfg.Decode(b.recvBuf)
		if err != nil {
			return err
		}
		if pkt == nil {
			return nil
		}
		if b.disp != nil {
			b.disp.enqueue(pkt)
		} else {
			c.dispatch(pkt)
		}
	}
}

func (c *Conn) dispatch(pkt Packet) {
	packetsDispatched.Inc()
	c.cfg.OnPacket(pkt)
}

// Send serializes the packet and queues its bytes for transmission. The
// send hook observes every call first; a nil packet or empty serialization
// is a no-op after the hook. At most one transmission is in flight per
// connection: the caller that flips the idle flag drains the buffer in
// chunk-sized pieces, all others just enqueue.
func (c *Conn) Send(pkt Packet) error {
	if hook := c.cfg.OnSend; hook != nil {
		hook(pkt)
	}
	if pkt == nil {
		return nil
	}
	data := pkt.Bytes()
	if len(data) == 0 {
		return nil
	}

	b := c.current()
	if b == nil {
		return ErrNotBound
	}

	b.sendBuf.Lock()
	b.sendBuf.Add(data)
	b.sendBuf.Unlock()

	if b.sending.CompareAndSwap(false, true) {
		go c.drainSend(b)
	}
	return nil
}

// drainSend transmits buffered bytes one chunk at a time until the buffer
// is empty, then returns the flag to idle. Bytes enqueued between the
// empty check and the flag reset are picked up by re-winning the flag, so
// nothing is stranded waiting for a future Send.
func (c *Conn) drainSend(b *binding) {
	chunk := globalTransferPool.getBuffer(c.cfg.ChunkSize)
	defer globalTransferPool.putBuffer(chunk)

	for {
		b.sendBuf.Lock()
		n := b.sendBuf.Len()
		if n > len(chunk) {
			n = len(chunk)
		}
		var cutErr error
		if n > 0 {
			cutErr = b.sendBuf.CutTo(chunk, 0, n)
		}
		b.sendBuf.Unlock()
		if cutErr != nil {
			// cannot happen while the length check and cut share one
			// critical section
			c.log.Error().Err(cutErr).Msg("send buffer corrupted")
			c.disconnect(b)
			return
		}

		if n == 0 {
			b.sending.Store(false)
			b.sendBuf.Lock()
			remaining := b.sendBuf.Len()
			b.sendBuf.Unlock()
			if remaining == 0 || !b.sending.CompareAndSwap(false, true) {
				return
			}
			continue
		}

		if _, err := b.sock.Write(chunk[:n]); err != nil {
			c.log.Debug().Err(err).Msg("send failed")
			b.sending.Store(false)
			c.disconnect(b)
			return
		}
		bytesSent.Add(float64(n))
	}
}

// disconnect funnels every teardown cause for one binding into at most one
// reset and at most one disconnect notification.
func (c *Conn) disconnect(b *binding) {
	performed, err := c.reset(b)
	if err != nil {
		c.log.Debug().Err(err).Msg("reset finished with errors")
	}
	if !performed {
		return
	}
	disconnects.Inc()
	if cb := c.cfg.OnClose; cb != nil {
		cb()
	}
}

// Reset unbinds the connection: graceful shutdown of both directions,
// socket released, buffers cleared, send flag idle, tags and remote
// identity cleared. It reports whether it performed the reset; concurrent
// callers observe it succeed exactly once per binding. Reset itself fires
// no disconnect notification; failure paths and Close notify when they win
// the reset.
func (c *Conn) Reset() bool {
	performed, err := c.reset(nil)
	if err != nil {
		c.log.Debug().Err(err).Msg("reset finished with errors")
	}
	return performed
}

// reset detaches and tears down the current binding. A non-nil b restricts
// the reset to that binding, so completions racing a rebind cannot tear
// down a newer one.
func (c *Conn) reset(b *binding) (bool, error) {
	c.resetMu.Lock()
	cur := c.bind
	if cur == nil || (b != nil && b != cur) {
		c.resetMu.Unlock()
		return false, nil
	}
	c.bind = nil
	c.resetMu.Unlock()

	var errs *multierror.Error
	if tc, ok := cur.sock.(*net.TCPConn); ok {
		if err := tc.CloseRead(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierror.Append(errs, err)
		}
		if err := tc.CloseWrite(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = multierror.Append(errs, err)
		}
	}
	if err := cur.sock.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = multierror.Append(errs, err)
	}
	if cur.disp != nil {
		cur.disp.stop()
	}

	cur.sendBuf.Lock()
	cur.sendBuf.Clear()
	cur.sendBuf.Unlock()
	cur.sending.Store(false)
	c.tags.Clear()

	connsActive.Dec()
	c.log.Debug().Stringer("remote", cur.remote).Msg("connection reset")
	return true, errs.ErrorOrNil()
}

// Close disposes the connection. It performs the reset if one is still
// pending, fires the disconnect notification when it wins it, and leaves
// the connection unusable for rebinding. Safe to call multiple times and
// from any goroutine, including dispatch callbacks.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	performed, err := c.reset(nil)
	if performed {
		disconnects.Inc()
		if cb := c.cfg.OnClose; cb != nil {
			cb()
		}
	}
	return err
}
