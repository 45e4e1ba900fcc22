package server

import (
	netsocket "github.com/loqix/NetworkSocket"
)

// Handler reacts to packets decoded on a server connection. Replies go
// back through conn.Send.
type Handler interface {
	HandlePacket(conn *netsocket.Conn, pkt netsocket.Packet)
}

// HandlerFunc is an adapter to allow the use of ordinary functions as Handlers.
type HandlerFunc func(conn *netsocket.Conn, pkt netsocket.Packet)

// HandlePacket calls f with the connection and packet.
func (f HandlerFunc) HandlePacket(c *netsocket.Conn, pkt netsocket.Packet) {
	f(c, pkt)
}
