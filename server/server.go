// Package server provides the accept loop and connection registry for the
// netsocket engine: it binds accepted sockets to Conns, reusing them
// across bindings, and removes them from the registry on disconnect.
package server

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	netsocket "github.com/loqix/NetworkSocket"
)

type Server struct {
	address  string               // network address to listen on.
	listener net.Listener         // TCP listener for incoming connections.
	config   *Config              // server configuration options.
	handler  Handler              // handler to process decoded packets.
	decode   netsocket.DecodeFunc // framing supplied by the collaborator.

	activeConns     sync.Map       // registry of active connections.
	activeConnCount atomic.Int32   // atomic counter for active connections.
	pool            *connPool      // unbound Conns kept for rebinding.
	eg              errgroup.Group // tracks the accept loop.
	stopChan        chan struct{}  // signals server shutdown.
	stopOnce        sync.Once
	log             zerolog.Logger
}

func NewServer(address string, decode netsocket.DecodeFunc, handler Handler, config *Config) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if decode == nil {
		return nil, errors.New("decode function is required")
	}
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Server{
		address:  address,
		config:   config,
		handler:  handler,
		decode:   decode,
		pool:     newConnPool(config.PoolSize),
		stopChan: make(chan struct{}),
		log:      log,
	}, nil
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	s.listener = ln
	s.log.Info().Str("address", ln.Addr().String()).Msg("server listening")

	s.eg.Go(s.acceptLoop)

	return nil
}

// Addr returns the address the server is listening on, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) Stop() error {
	var errs *multierror.Error

	s.stopOnce.Do(func() {
		close(s.stopChan)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = multierror.Append(errs, err)
			}
		}
		if err := s.eg.Wait(); err != nil {
			errs = multierror.Append(errs, err)
		}

		s.activeConns.Range(func(key, _ any) bool {
			if c, ok := key.(*netsocket.Conn); ok {
				if err := c.Close(); err != nil {
					errs = multierror.Append(errs, err)
				}
			}

			return true
		})
		s.pool.drain()

		deadline := time.Now().Add(s.config.ShutdownTimeout)
		for s.activeConnCount.Load() > 0 {
			if time.Now().After(deadline) {
				s.log.Warn().Msg("timeout waiting for connections to close")
				break
			}
			time.Sleep(10 * time.Millisecond)
		}

		s.log.Info().Msg("server stopped")
	})

	return errs.ErrorOrNil()
}

func (s *Server) acceptLoop() error {
	for {
		select {
		case <-s.stopChan:
			return nil
		default:
		}

		sock, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				time.Sleep(100 * time.Millisecond)

				continue
			}
			s.log.Error().Err(err).Msg("accept error")

			return err
		}

		if s.config.MaxConns > 0 {
			if int(s.activeConnCount.Load()) >= s.config.MaxConns {
				s.log.Warn().
					Stringer("remote", sock.RemoteAddr()).
					Msg("connection limit reached, rejecting")
				if err := sock.Close(); err != nil {
					s.log.Debug().Err(err).Msg("connection close error")
				}

				continue
			}
		}

		s.handleNewConnection(sock)
	}
}

func (s *Server) handleNewConnection(sock net.Conn) {
	c := s.pool.get(s.newConn)

	if err := c.Bind(sock); err != nil {
		if !errors.Is(err, netsocket.ErrClosed) {
			s.log.Warn().Err(err).Msg("bind failed")
			sock.Close()
			c.Close()

			return
		}

		// a disposed Conn slipped through the pool; bind a fresh one
		// instead of dropping the client
		c.Close()
		c = s.newConn()
		if err := c.Bind(sock); err != nil {
			s.log.Warn().Err(err).Msg("bind failed")
			sock.Close()
			c.Close()

			return
		}
	}

	s.activeConnCount.Add(1)
	s.activeConns.Store(c, struct{}{})

	if err := c.BeginReceive(); err != nil {
		s.log.Warn().Err(err).Msg("receive start failed")
		s.removeConn(c)
		c.Close()
	}
}

// newConn builds an engine connection whose callbacks route into this
// server. The closures capture the Conn itself so the same object can be
// rebound to later sockets.
func (s *Server) newConn() *netsocket.Conn {
	var c *netsocket.Conn
	c = netsocket.NewConn(netsocket.ConnConfig{
		Decode: s.decode,
		OnPacket: func(pkt netsocket.Packet) {
			s.handler.HandlePacket(c, pkt)
		},
		OnClose: func() {
			s.removeConn(c)
		},
		ChunkSize:     s.config.ChunkSize,
		AsyncDispatch: s.config.AsyncDispatch,
		KeepAlive:     s.config.KeepAlive,
		Logger:        &s.log,
	})

	return c
}

func (s *Server) removeConn(c *netsocket.Conn) {
	if _, ok := s.activeConns.LoadAndDelete(c); !ok {
		return
	}
	s.activeConnCount.Add(-1)

	select {
	case <-s.stopChan:
		c.Close()
	default:
		// a handler may have disposed its own connection; a closed Conn
		// cannot rebind and must not reach the next client
		if c.IsClosed() || !s.pool.put(c) {
			c.Close()
		}
	}
}
