// Package netsocket turns raw TCP sockets into reliable, ordered,
// bidirectional packet channels without a thread per connection.
//
// Features:
//   - Connection engine: Conn owns one live socket and drives itself from
//     I/O completions; packets are dispatched in wire order and outbound
//     bytes are drained by a single-flight chunked send pipeline.
//   - Framing: pluggable DecodeFunc supplied by the collaborator; a
//     16-bit length-prefix codec (EncodeFrame, DecodeFrame) is included.
//   - Buffering: ByteBuilder accumulates unframed bytes and releases them
//     from the front; transfer chunks are pooled and reused.
//   - Keep-alive: OS-level TCP keep-alive with short idle and retry
//     intervals, applied at bind time, best effort.
//   - Tags: a per-binding key/value store for session state.
//
// Basic client example:
//
//	conn, err := netsocket.Dial("localhost:9000", netsocket.ConnConfig{
//	    Decode: netsocket.DecodeFrame,
//	    OnPacket: func(p netsocket.Packet) {
//	        // handle p.Bytes()
//	    },
//	    OnClose: func() {
//	        // connection gone
//	    },
//	})
//	if err != nil {
//	    // handle error
//	}
//	defer conn.Close()
//	conn.Send(netsocket.FramedPacket("hello"))
//
// The server subpackage provides the accept loop and connection registry
// built on top of Conn.
package netsocket
