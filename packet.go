package netsocket

import (
	"encoding/binary"
	"errors"
)

const (
	// FrameLengthSize is the size in bytes of the length-prefix header.
	FrameLengthSize = 2

	// MaxFrameLength is the largest payload the length-prefix codec can
	// carry in one frame.
	MaxFrameLength = 1<<(8*FrameLengthSize) - 1
)

// ErrMaxLenExceeded indicates a payload exceeds the maximum frame length.
var ErrMaxLenExceeded = errors.New("netsocket: maximum frame length exceeded")

// Packet is any message that can render itself to bytes for transmission.
// The engine is oblivious to packet contents beyond this.
type Packet interface {
	Bytes() []byte
}

// DecodeFunc extracts one packet from accumulated received bytes. It runs
// with the builder's lock already held. It returns (pkt, nil) after
// consuming exactly that packet's bytes, (nil, nil) when the buffered bytes
// do not yet form a complete packet (consuming nothing), or an error when
// the byte stream violates the framing contract; errors tear the
// connection down.
type DecodeFunc func(b *ByteBuilder) (Packet, error)

// RawPacket is a Packet over a plain byte payload.
type RawPacket []byte

// Bytes returns the payload itself.
func (p RawPacket) Bytes() []byte { return p }

// FramedPacket is a Packet whose serialization is the payload prefixed
// with a big-endian 16-bit length header. It pairs with DecodeFrame.
type FramedPacket []byte

// Bytes renders the packet with its length header.
func (p FramedPacket) Bytes() []byte {
	out, err := EncodeFrame(p)
	if err != nil {
		return nil
	}
	return out
}

// EncodeFrame prepends a big-endian 16-bit length header to payload.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxFrameLength {
		return nil, ErrMaxLenExceeded
	}
	out := make([]byte, FrameLengthSize+len(payload))
	binary.BigEndian.PutUint16(out, uint16(len(payload)))
	copy(out[FrameLengthSize:], payload)
	return out, nil
}

// DecodeFrame is a DecodeFunc for big-endian 16-bit length-prefixed
// frames. The yielded packets are RawPacket payloads with the header
// stripped.
func DecodeFrame(b *ByteBuilder) (Packet, error) {
	buffered := b.Bytes()
	if len(buffered) < FrameLengthSize {
		return nil, nil
	}
	payloadLen := int(binary.BigEndian.Uint16(buffered))
	total := FrameLengthSize + payloadLen
	if len(buffered) < total {
		return nil, nil
	}
	frame := make([]byte, total)
	if err := b.CutTo(frame, 0, total); err != nil {
		return nil, err
	}
	return RawPacket(frame[FrameLengthSize:]), nil
}
