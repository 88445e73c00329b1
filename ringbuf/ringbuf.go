// Package ringbuf implements the fixed-capacity circular byte queues that
// carry the console stream between the radio event context and the
// application loop.
//
// Each buffer is written by exactly one goroutine and read by exactly one
// goroutine, so no lock is needed: the head and tail indices are updated
// atomically and one slot is always kept free to tell a full buffer from an
// empty one.
package ringbuf

import "sync/atomic"

// ConsoleSize is the usable capacity of the console receive and transmit
// buffers. The +45 allows a formatted 256-byte object to be queued in one go.
const ConsoleSize = 1024 + 45

// Buffer is a single-producer single-consumer byte queue.
//
// Push and Pop do no bounds checking on the hot path: the producer must check
// Full before every Push and the consumer must check Empty before every Pop.
type Buffer struct {
	storage []byte
	head    atomic.Uint32 // next index to pop
	tail    atomic.Uint32 // next index to push
}

// New returns a buffer that holds up to size bytes. It is allocated once and
// never resized.
func New(size int) *Buffer {
	return &Buffer{storage: make([]byte, size+1)}
}

// Full reports whether another Push would catch up with the consumer.
func (b *Buffer) Full() bool {
	next := b.tail.Load() + 1
	if next == uint32(len(b.storage)) {
		next = 0
	}
	return next == b.head.Load()
}

// Empty reports whether there is nothing to Pop.
func (b *Buffer) Empty() bool {
	return b.head.Load() == b.tail.Load()
}

// Push appends one byte. The caller must have checked Full.
func (b *Buffer) Push(c byte) {
	tail := b.tail.Load()
	b.storage[tail] = c
	tail++
	if tail == uint32(len(b.storage)) {
		tail = 0
	}
	b.tail.Store(tail)
}

// Pop removes and returns the oldest byte. The caller must have checked
// Empty.
func (b *Buffer) Pop() byte {
	head := b.head.Load()
	c := b.storage[head]
	head++
	if head == uint32(len(b.storage)) {
		head = 0
	}
	b.head.Store(head)
	return c
}
