// Package ringchan provides a bounded channel whose writers never block:
// when the buffer is full the oldest element is discarded.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// RingChannel wraps a buffered channel with overwrite-oldest semantics.
//
//	rc := ringchan.New[int](3)
//	for i := 0; i < 10; i++ {
//	    rc.Send(i)
//	}
//	rc.Close()
//	for v := range rc.C() {
//	    fmt.Println(v) // 7, 8, 9
//	}
//
// Send and Close may be called concurrently; sends after Close are dropped.
type RingChannel[T any] struct {
	ch      chan T
	mu      sync.Mutex
	closed  bool
	metrics Metrics
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. It is closed by Close.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest buffered value when full.
// It reports whether a value was discarded.
func (rc *RingChannel[T]) Send(v T) (dropped bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		atomic.AddInt64(&rc.metrics.Rejected, 1)
		return false
	}

	for {
		select {
		case rc.ch <- v:
			atomic.AddInt64(&rc.metrics.Written, 1)
			return dropped
		default:
		}
		// Readers may race us for the slot; retry until the send lands.
		select {
		case <-rc.ch:
			atomic.AddInt64(&rc.metrics.Overwritten, 1)
			dropped = true
		default:
		}
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the channel capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the receive side. It is safe to call more than once.
func (rc *RingChannel[T]) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	close(rc.ch)
}

// GetMetrics returns a snapshot of the counters.
func (rc *RingChannel[T]) GetMetrics() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
		Rejected:    atomic.LoadInt64(&rc.metrics.Rejected),
	}
}

// Metrics counts channel traffic. All fields are updated atomically.
type Metrics struct {
	Written     int64
	Overwritten int64
	Rejected    int64 // sends after Close
}
