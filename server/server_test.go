package server

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	netsocket "github.com/loqix/NetworkSocket"
)

func dialEcho(t *testing.T, addr string) (*netsocket.Conn, chan string) {
	t.Helper()
	got := make(chan string, 32)
	conn, err := netsocket.Dial(addr, netsocket.ConnConfig{
		Decode:   netsocket.DecodeFrame,
		OnPacket: func(p netsocket.Packet) { got <- string(p.Bytes()) },
	})
	require.NoError(t, err)
	return conn, got
}

func TestServerEcho(t *testing.T) {
	echo := HandlerFunc(func(c *netsocket.Conn, pkt netsocket.Packet) {
		if err := c.Send(netsocket.FramedPacket(pkt.Bytes())); err != nil {
			t.Error(err)
		}
	})
	srv, err := NewServer("127.0.0.1:0", netsocket.DecodeFrame, echo, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, got := dialEcho(t, srv.Addr().String())
	defer conn.Close()

	msgs := []string{"one", "two", "three"}
	for _, m := range msgs {
		require.NoError(t, conn.Send(netsocket.FramedPacket(m)))
	}
	for _, want := range msgs {
		select {
		case g := <-got:
			require.Equal(t, want, g)
		case <-time.After(2 * time.Second):
			t.Fatalf("no echo for %q", want)
		}
	}
}

func TestServerSessionTags(t *testing.T) {
	// the handler keeps a per-connection counter in the tag store
	counter := HandlerFunc(func(c *netsocket.Conn, pkt netsocket.Packet) {
		n := 0
		if v, ok := c.Tags().Get("count"); ok {
			n = v.(int)
		}
		n++
		c.Tags().Set("count", n)
		if err := c.Send(netsocket.FramedPacket(fmt.Sprintf("%d", n))); err != nil {
			t.Error(err)
		}
	})
	srv, err := NewServer("127.0.0.1:0", netsocket.DecodeFrame, counter, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, got := dialEcho(t, srv.Addr().String())
	defer conn.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, conn.Send(netsocket.FramedPacket("tick")))
		select {
		case g := <-got:
			require.Equal(t, fmt.Sprintf("%d", i), g)
		case <-time.After(2 * time.Second):
			t.Fatalf("no reply for tick %d", i)
		}
	}
}

func TestServerConnReuse(t *testing.T) {
	var served atomic.Int32
	echo := HandlerFunc(func(c *netsocket.Conn, pkt netsocket.Packet) {
		served.Add(1)
		if err := c.Send(netsocket.FramedPacket(pkt.Bytes())); err != nil {
			t.Error(err)
		}
	})
	srv, err := NewServer("127.0.0.1:0", netsocket.DecodeFrame, echo, &Config{PoolSize: 2})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	// sequential clients exercise the bind/reset/rebind path
	for i := 0; i < 5; i++ {
		conn, got := dialEcho(t, srv.Addr().String())
		require.NoError(t, conn.Send(netsocket.FramedPacket("round")))
		select {
		case g := <-got:
			require.Equal(t, "round", g)
		case <-time.After(2 * time.Second):
			t.Fatalf("round %d: no echo", i)
		}
		conn.Close()
		require.Eventually(t, func() bool { return srv.activeConnCount.Load() == 0 },
			2*time.Second, 10*time.Millisecond, "round %d: connection not removed", i)
	}
	require.Equal(t, int32(5), served.Load())
}

func TestServerHandlerCloseNotRecycled(t *testing.T) {
	// a handler may dispose its own connection mid-dispatch; the dead Conn
	// must be discarded, not handed to the next client
	kick := HandlerFunc(func(c *netsocket.Conn, pkt netsocket.Packet) {
		if string(pkt.Bytes()) == "kick" {
			if err := c.Close(); err != nil {
				t.Error(err)
			}
			return
		}
		if err := c.Send(netsocket.FramedPacket(pkt.Bytes())); err != nil {
			t.Error(err)
		}
	})
	srv, err := NewServer("127.0.0.1:0", netsocket.DecodeFrame, kick, &Config{PoolSize: 2})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	kicked := make(chan struct{})
	first, err := netsocket.Dial(srv.Addr().String(), netsocket.ConnConfig{
		Decode:   netsocket.DecodeFrame,
		OnPacket: func(netsocket.Packet) {},
		OnClose:  func() { close(kicked) },
	})
	require.NoError(t, err)
	defer first.Close()

	require.NoError(t, first.Send(netsocket.FramedPacket("kick")))
	select {
	case <-kicked:
	case <-time.After(2 * time.Second):
		t.Fatal("first client not disconnected")
	}
	require.Eventually(t, func() bool { return srv.activeConnCount.Load() == 0 },
		2*time.Second, 10*time.Millisecond, "first connection not removed")

	second, got := dialEcho(t, srv.Addr().String())
	defer second.Close()
	require.NoError(t, second.Send(netsocket.FramedPacket("hello")))
	select {
	case g := <-got:
		require.Equal(t, "hello", g)
	case <-time.After(2 * time.Second):
		t.Fatal("second client not served")
	}
}

func TestServerMaxConns(t *testing.T) {
	echo := HandlerFunc(func(c *netsocket.Conn, pkt netsocket.Packet) {
		if err := c.Send(netsocket.FramedPacket(pkt.Bytes())); err != nil {
			t.Error(err)
		}
	})
	srv, err := NewServer("127.0.0.1:0", netsocket.DecodeFrame, echo, &Config{MaxConns: 1})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	first, got := dialEcho(t, srv.Addr().String())
	defer first.Close()
	require.NoError(t, first.Send(netsocket.FramedPacket("hold")))
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("first connection not served")
	}

	// the second connection is accepted by the OS but rejected by the server
	rejected := make(chan struct{})
	second, err := netsocket.Dial(srv.Addr().String(), netsocket.ConnConfig{
		Decode:   netsocket.DecodeFrame,
		OnPacket: func(netsocket.Packet) {},
		OnClose:  func() { close(rejected) },
	})
	require.NoError(t, err)
	defer second.Close()

	select {
	case <-rejected:
	case <-time.After(2 * time.Second):
		t.Fatal("second connection not rejected")
	}
}

func TestServerStop(t *testing.T) {
	echo := HandlerFunc(func(c *netsocket.Conn, pkt netsocket.Packet) {
		if err := c.Send(netsocket.FramedPacket(pkt.Bytes())); err != nil {
			t.Error(err)
		}
	})
	srv, err := NewServer("127.0.0.1:0", netsocket.DecodeFrame, echo, nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start())

	closed := make(chan struct{})
	conn, err := netsocket.Dial(srv.Addr().String(), netsocket.ConnConfig{
		Decode:   netsocket.DecodeFrame,
		OnPacket: func(netsocket.Packet) {},
		OnClose:  func() { close(closed) },
	})
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop(), "stop must be idempotent")

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("client not disconnected by server stop")
	}
}
