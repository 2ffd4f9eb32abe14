// Package history keeps a bounded window of the most recent pad states.
package history

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
	"github.com/srg/padctl/internal/protocol"
)

const (
	// DefaultSize is the number of states kept when no size is configured.
	DefaultSize uint32 = 256

	// MaxSize guards against accidental misconfiguration.
	MaxSize uint32 = 64 * 1024
)

// Recorder is a pad.Subscriber that remembers the last states it was given.
// When full, the oldest state is overwritten.
//
// All methods are thread-safe.
type Recorder struct {
	mu     sync.Mutex
	buffer mpmc.RichOverlappedRingBuffer[protocol.DeviceState]

	recorded    atomic.Uint64
	overwritten atomic.Uint64
}

// NewRecorder creates a recorder holding at least size states.
// The ring may round size up to a power of two.
func NewRecorder(size uint32) (*Recorder, error) {
	if size == 0 {
		return nil, fmt.Errorf("history size must be > 0")
	}
	if size > MaxSize {
		return nil, fmt.Errorf("history size %d exceeds maximum %d", size, MaxSize)
	}
	return &Recorder{buffer: mpmc.NewOverlappedRingBuffer[protocol.DeviceState](size)}, nil
}

// OnState records st.
func (r *Recorder) OnState(st protocol.DeviceState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	overwrites, err := r.buffer.EnqueueM(st)
	if err != nil {
		return fmt.Errorf("history enqueue failed: %w", err)
	}
	r.recorded.Add(1)
	r.overwritten.Add(uint64(overwrites))
	return nil
}

// Snapshot returns the recorded states, oldest first, without consuming them.
func (r *Recorder) Snapshot() []protocol.DeviceState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := r.drainLocked()
	for _, st := range states {
		// Re-enqueueing what was just drained cannot overflow.
		_, _ = r.buffer.EnqueueM(st)
	}
	return states
}

// Drain returns the recorded states, oldest first, and empties the recorder.
func (r *Recorder) Drain() []protocol.DeviceState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drainLocked()
}

func (r *Recorder) drainLocked() []protocol.DeviceState {
	states := make([]protocol.DeviceState, 0, r.buffer.Cap())
	for !r.buffer.IsEmpty() {
		st, err := r.buffer.Dequeue()
		if err != nil {
			break
		}
		states = append(states, st)
	}
	return states
}

// Cap returns the effective capacity of the ring.
func (r *Recorder) Cap() uint32 {
	return r.buffer.Cap()
}

// Recorded returns how many states were ever recorded.
func (r *Recorder) Recorded() uint64 {
	return r.recorded.Load()
}

// Overwritten returns how many states were lost to overflow.
func (r *Recorder) Overwritten() uint64 {
	return r.overwritten.Load()
}
