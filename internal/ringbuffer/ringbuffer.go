// Package ringbuffer provides a lock-free single-producer/single-consumer
// FIFO for float32 audio samples, shared between a real-time audio callback
// and a consumer worker.
package ringbuffer

import "sync/atomic"

// RingBuffer is a bounded circular buffer over a power-of-two capacity.
// It must not be used directly after Split: the producer and consumer
// halves are the only supported access points so that ownership of each
// side stays exclusive to a single goroutine.
type RingBuffer struct {
	buf       []float32
	mask      uint64
	head      atomic.Uint64 // next write index (producer-owned)
	tail      atomic.Uint64 // next read index (consumer-owned)
	dropCount atomic.Uint64
}

// New creates a RingBuffer whose capacity is the next power of two ≥ capacity.
func New(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}
	size := 1
	for size < capacity {
		size <<= 1
	}
	return &RingBuffer{
		buf:  make([]float32, size),
		mask: uint64(size - 1),
	}
}

// Split returns the producer and consumer halves. Call exactly once; each
// half is safe for use by exactly one goroutine (its owner) at a time.
func (rb *RingBuffer) Split() (*Producer, *Consumer) {
	return &Producer{rb: rb}, &Consumer{rb: rb}
}

// DropCount returns the number of samples ever dropped due to overflow.
func (rb *RingBuffer) DropCount() uint64 {
	return rb.dropCount.Load()
}

// Producer is the single-writer half of a RingBuffer. Owned exclusively by
// the real-time audio callback thread.
type Producer struct {
	rb *RingBuffer
}

// PushSlice writes as many samples from src as fit and returns the count
// actually written. Never blocks or allocates; any samples beyond available
// capacity are dropped and counted.
func (p *Producer) PushSlice(src []float32) int {
	rb := p.rb
	head := rb.head.Load()
	tail := rb.tail.Load()

	capacity := rb.mask + 1
	available := capacity - (head - tail)
	toWrite := uint64(len(src))
	if toWrite > available {
		dropped := toWrite - available
		rb.dropCount.Add(dropped)
		toWrite = available
	}

	for i := uint64(0); i < toWrite; i++ {
		rb.buf[(head+i)&rb.mask] = src[i]
	}
	rb.head.Add(toWrite)
	return int(toWrite)
}

// Consumer is the single-reader half of a RingBuffer. Owned exclusively by
// the worker goroutine that drains audio.
type Consumer struct {
	rb *RingBuffer
}

// PopSlice reads up to len(dst) samples into dst and returns the count read.
// Returns 0 if the buffer is currently empty.
func (c *Consumer) PopSlice(dst []float32) int {
	rb := c.rb
	head := rb.head.Load()
	tail := rb.tail.Load()

	available := head - tail
	toRead := uint64(len(dst))
	if toRead > available {
		toRead = available
	}

	for i := uint64(0); i < toRead; i++ {
		dst[i] = rb.buf[(tail+i)&rb.mask]
	}
	rb.tail.Add(toRead)
	return int(toRead)
}

// IsEmpty reports whether there is currently nothing to read. Racy by
// nature (the producer may write concurrently) but safe to call from the
// consumer side as an optimistic hint, matching the wait-free contract.
func (c *Consumer) IsEmpty() bool {
	return c.rb.head.Load() == c.rb.tail.Load()
}
