package server

import (
	"time"

	"github.com/rs/zerolog"

	netsocket "github.com/loqix/NetworkSocket"
)

const (
	DefaultShutdownTimeout = 5 * time.Second // grace period for shutdown wait.
	DefaultMaxConns        = 0               // default max connections means no limit.
	DefaultPoolSize        = 64              // connections kept for rebinding.
)

type Config struct {
	MaxConns        int                       // maximum concurrent connections allowed.
	ShutdownTimeout time.Duration             // grace period for shutdown wait.
	ChunkSize       int                       // per-transmission cap handed to each Conn.
	AsyncDispatch   bool                      // dispatch packets off the receive path.
	KeepAlive       netsocket.KeepAliveConfig // keep-alive applied at bind time.
	PoolSize        int                       // capacity of the Conn reuse pool.
	Logger          *zerolog.Logger           // optional logger for server events.
}

func (c *Config) applyDefaults() {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
}
