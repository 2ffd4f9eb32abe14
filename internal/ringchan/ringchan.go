// Package ringchan provides a bounded channel with overwrite-oldest semantics.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// RingChannel wraps a buffered channel so that producers never block: when the
// buffer is full the oldest element is discarded to make room.
//
// Readers treat C() as a normal receive-only channel. Close is idempotent and
// sends after Close are dropped instead of panicking, so transport callbacks
// that race with a disconnect are harmless.
//
//	rc := ringchan.New[[]byte](3)
//	for i := 0; i < 10; i++ {
//	    rc.Send([]byte{byte(i)})
//	}
//	rc.Close()
//	for v := range rc.C() {
//	    fmt.Println(v) // [7] [8] [9]
//	}
type RingChannel[T any] struct {
	mu      sync.Mutex
	ch      chan T
	closed  bool
	dropped atomic.Uint64
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest buffered element if the buffer is full.
// It reports false when the channel is already closed.
func (rc *RingChannel[T]) Send(v T) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		rc.dropped.Add(1)
		return false
	}
	for {
		select {
		case rc.ch <- v:
			return true
		default:
		}
		// a concurrent reader may have drained the buffer in between
		select {
		case <-rc.ch:
			rc.dropped.Add(1)
		default:
		}
	}
}

// TrySend inserts v only if there is room. It never discards buffered elements.
func (rc *RingChannel[T]) TrySend(v T) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return false
	}
	select {
	case rc.ch <- v:
		return true
	default:
		return false
	}
}

// Dropped returns the number of elements discarded by overflow or sent after Close.
func (rc *RingChannel[T]) Dropped() uint64 {
	return rc.dropped.Load()
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the channel capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the underlying channel. Buffered elements remain readable.
func (rc *RingChannel[T]) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.closed {
		rc.closed = true
		close(rc.ch)
	}
}

// Closed reports whether Close has been called.
func (rc *RingChannel[T]) Closed() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.closed
}
