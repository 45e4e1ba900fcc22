package netsocket

import (
	"net"
	"time"
)

// Dial connects to addr, binds the socket to a new Conn configured by cfg
// and starts receiving.
func Dial(addr string, cfg ConnConfig) (*Conn, error) {
	return DialTimeout(addr, 0, cfg)
}

// DialTimeout is Dial with a connect timeout. Zero means no timeout.
func DialTimeout(addr string, timeout time.Duration, cfg ConnConfig) (*Conn, error) {
	var (
		sock net.Conn
		err  error
	)
	if timeout > 0 {
		sock, err = net.DialTimeout("tcp", addr, timeout)
	} else {
		sock, err = net.Dial("tcp", addr)
	}
	if err != nil {
		return nil, err
	}

	c := NewConn(cfg)
	if err := c.Bind(sock); err != nil {
		sock.Close()
		return nil, err
	}
	if err := c.BeginReceive(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}
