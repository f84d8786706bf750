// Package buffer provides a bounded byte buffer for subprocess output tails.
package buffer

import (
	"sync"
)

// DefaultTailSize is the default capacity used for process output tails.
const DefaultTailSize = 4 * 1024

// RingBuffer is a thread-safe circular buffer that keeps the most recent
// bytes written to it, up to its capacity. Older bytes are overwritten.
//
// The supervisor keeps one per subprocess so that the last output seen
// before an exit can be attached to the event log.
type RingBuffer struct {
	data  []byte
	start int
	size  int
	mu    sync.Mutex
}

// NewRingBuffer creates a new RingBuffer with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{data: make([]byte, capacity)}
}

// Write appends p, overwriting the oldest bytes when the buffer is full.
// It implements io.Writer and never fails.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	capacity := len(rb.data)
	if n >= capacity {
		copy(rb.data, p[n-capacity:])
		rb.start = 0
		rb.size = capacity
		return n, nil
	}

	end := (rb.start + rb.size) % capacity
	first := copy(rb.data[end:], p)
	copy(rb.data, p[first:])

	rb.size += n
	if rb.size > capacity {
		rb.start = (rb.start + rb.size - capacity) % capacity
		rb.size = capacity
	}
	return n, nil
}

// Bytes returns a copy of the buffered bytes, oldest first.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.size == 0 {
		return nil
	}

	out := make([]byte, rb.size)
	first := copy(out, rb.data[rb.start:min(rb.start+rb.size, len(rb.data))])
	copy(out[first:], rb.data[:rb.size-first])
	return out
}

// String returns the buffered bytes as a string.
func (rb *RingBuffer) String() string {
	return string(rb.Bytes())
}

// Reset discards the buffered bytes.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.start = 0
	rb.size = 0
}

// Len returns the current number of bytes in the buffer.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return len(rb.data)
}
