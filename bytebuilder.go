package netsocket

import (
	"errors"
	"sync"
)

// ErrOutOfRange indicates a cut was requested for more bytes than are
// buffered, or the destination cannot hold them.
var ErrOutOfRange = errors.New("netsocket: cut exceeds available bytes")

// ByteBuilder accumulates bytes at the tail and releases them from the
// front in FIFO order. It embeds its own lock but the methods do not
// acquire it: callers hold the lock across any sequence of operations that
// must appear atomic to a concurrent appender, such as checking Len before
// CutTo. Cut-out bytes are copied, so later growth never invalidates them.
type ByteBuilder struct {
	sync.Mutex
	buf []byte
}

// NewByteBuilder creates a ByteBuilder with the given initial capacity.
func NewByteBuilder(capacity int) *ByteBuilder {
	if capacity < 0 {
		capacity = 0
	}
	return &ByteBuilder{buf: make([]byte, 0, capacity)}
}

// Add appends data to the tail of the builder.
func (b *ByteBuilder) Add(data []byte) {
	b.buf = append(b.buf, data...)
}

// Len returns the number of buffered bytes.
func (b *ByteBuilder) Len() int {
	return len(b.buf)
}

// Bytes returns a view of the buffered bytes. The view is valid only until
// the next mutation and only while the caller holds the lock.
func (b *ByteBuilder) Bytes() []byte {
	return b.buf
}

// CutTo copies the first length bytes into dst starting at offset and
// removes them from the front. It fails with ErrOutOfRange, mutating
// nothing, if length exceeds the buffered content or dst cannot hold it.
func (b *ByteBuilder) CutTo(dst []byte, offset, length int) error {
	if length < 0 || offset < 0 ||
		length > len(b.buf) || offset+length > len(dst) {
		return ErrOutOfRange
	}
	copy(dst[offset:offset+length], b.buf[:length])
	remaining := copy(b.buf, b.buf[length:])
	b.buf = b.buf[:remaining]
	return nil
}

// Clear discards all buffered bytes, keeping the allocation.
func (b *ByteBuilder) Clear() {
	b.buf = b.buf[:0]
}
