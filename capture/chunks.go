package capture

import (
	"github.com/smallnest/ringbuffer"
)

// ChunkBuffer accumulates encoded chunks a device delivers
// asynchronously during one capture. Device callbacks write, End drains.
type ChunkBuffer struct {
	rb *ringbuffer.RingBuffer
}

// NewChunkBuffer sizes the accumulator for capacity bytes. Writes block
// once the buffer is full, which back-pressures the device callback
// instead of dropping audio.
func NewChunkBuffer(capacity int) *ChunkBuffer {
	return &ChunkBuffer{
		rb: ringbuffer.New(capacity).SetBlocking(true),
	}
}

// Write appends one encoded chunk.
func (b *ChunkBuffer) Write(p []byte) (int, error) {
	return b.rb.Write(p)
}

// Drain returns everything accumulated so far and empties the buffer.
func (b *ChunkBuffer) Drain() []byte {
	n := b.rb.Length()
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	b.rb.Read(out)
	return out
}

// Reset discards any buffered data.
func (b *ChunkBuffer) Reset() {
	b.rb.Reset()
}
