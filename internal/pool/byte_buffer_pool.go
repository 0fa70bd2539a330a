// Package pool provides pooled byte buffers for chunk and point scratch
// space. Readers and writers churn through per-chunk buffers; pooling them
// keeps steady-state streaming allocation-free.
package pool

import "sync"

const (
	// ChunkBufferDefaultSize is the initial capacity of a pooled chunk buffer.
	ChunkBufferDefaultSize = 64 * 1024
	// ChunkBufferMaxThreshold is the largest buffer returned to the pool.
	// Oversized buffers from pathological chunks are dropped instead of
	// pinning memory.
	ChunkBufferMaxThreshold = 8 * 1024 * 1024
)

// ByteBuffer wraps a reusable byte slice.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified default size.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset resets the buffer to be empty, but retains the allocated memory for reuse.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// MustWrite writes data to the buffer, growing it if necessary.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// SetLength sets the length of the buffer to n, growing the backing array
// if necessary.
func (bb *ByteBuffer) SetLength(n int) {
	if n < 0 {
		panic("SetLength: negative length")
	}
	if n <= cap(bb.B) {
		bb.B = bb.B[:n]
		return
	}

	grown := make([]byte, n)
	copy(grown, bb.B)
	bb.B = grown
}

var chunkBufferPool = sync.Pool{
	New: func() any {
		return NewByteBuffer(ChunkBufferDefaultSize)
	},
}

// GetChunkBuffer obtains a reset ByteBuffer from the pool.
func GetChunkBuffer() *ByteBuffer {
	bb, _ := chunkBufferPool.Get().(*ByteBuffer)
	bb.Reset()

	return bb
}

// PutChunkBuffer returns a ByteBuffer to the pool. Buffers above the
// threshold are dropped.
func PutChunkBuffer(bb *ByteBuffer) {
	if bb == nil || cap(bb.B) > ChunkBufferMaxThreshold {
		return
	}
	chunkBufferPool.Put(bb)
}
