//go:build linux

package netsocket

import (
	"net"

	"golang.org/x/sys/unix"
)

// setKeepAliveProbes sets the idle, interval and probe-count sockopts
// directly, which the portable net API does not expose separately.
func setKeepAliveProbes(tc *net.TCPConn, cfg KeepAliveConfig) error {
	raw, err := tc.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		idle := int(cfg.Idle.Seconds())
		if idle < 1 {
			idle = 1
		}
		interval := int(cfg.Interval.Seconds())
		if interval < 1 {
			interval = 1
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, idle); e != nil {
			sockErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, interval); e != nil {
			sockErr = e
			return
		}
		if e := unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPCNT, cfg.Count); e != nil {
			sockErr = e
			return
		}
	})
	if err != nil {
		return err
	}
	return sockErr
}
