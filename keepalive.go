package netsocket

import (
	"net"
	"time"
)

const (
	// DefaultKeepAliveIdle is how long a connection sits idle before the
	// first keep-alive probe.
	DefaultKeepAliveIdle = 5 * time.Second

	// DefaultKeepAliveInterval is the gap between unanswered probes.
	DefaultKeepAliveInterval = 3 * time.Second

	// DefaultKeepAliveCount is how many unanswered probes declare the peer
	// dead, on platforms that expose the knob.
	DefaultKeepAliveCount = 3
)

// KeepAliveConfig controls the OS-level TCP keep-alive applied at bind
// time. Keep-alive is best effort; a platform that cannot apply it does
// not fail the binding.
type KeepAliveConfig struct {
	Disable  bool
	Idle     time.Duration
	Interval time.Duration
	Count    int
}

func (k *KeepAliveConfig) applyDefaults() {
	if k.Idle == 0 {
		k.Idle = DefaultKeepAliveIdle
	}
	if k.Interval == 0 {
		k.Interval = DefaultKeepAliveInterval
	}
	if k.Count == 0 {
		k.Count = DefaultKeepAliveCount
	}
}

// applyKeepAlive enables keep-alive probing on conn. Non-TCP connections
// are left untouched. The returned error is for logging only.
func applyKeepAlive(conn net.Conn, cfg KeepAliveConfig) error {
	if cfg.Disable {
		return nil
	}
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	cfg.applyDefaults()
	if err := tc.SetKeepAlive(true); err != nil {
		return err
	}
	return setKeepAliveProbes(tc, cfg)
}
