//go:build !linux

package netsocket

import "net"

// setKeepAliveProbes falls back to the portable keep-alive period, which
// maps to the probe interval on most platforms. Idle time and probe count
// stay at OS defaults.
func setKeepAliveProbes(tc *net.TCPConn, cfg KeepAliveConfig) error {
	return tc.SetKeepAlivePeriod(cfg.Interval)
}
