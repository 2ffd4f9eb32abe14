package pad

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/groutine"
	"github.com/srg/padctl/internal/protocol"
	"github.com/srg/padctl/internal/ringchan"
)

// Subscriber receives every decoded device state.
//
// Each subscriber gets its own delivery goroutine and states arrive in order.
// OnState should return promptly: while it blocks, up to 16 newer states are
// queued for it and older ones are discarded. Other subscribers and the pump
// are unaffected. A returned error or panic is logged and does not stop later
// deliveries.
type Subscriber interface {
	OnState(state protocol.DeviceState) error
}

// SubscriberFunc adapts a plain function to Subscriber.
type SubscriberFunc func(state protocol.DeviceState) error

func (f SubscriberFunc) OnState(state protocol.DeviceState) error {
	return f(state)
}

// ChannelSubscriber buffers states in a ring channel for consumers that read
// at their own pace. When the consumer falls behind the oldest state is lost.
type ChannelSubscriber struct {
	rc *ringchan.RingChannel[protocol.DeviceState]
}

// NewChannelSubscriber creates a subscriber buffering up to capacity states.
func NewChannelSubscriber(capacity int) *ChannelSubscriber {
	if capacity <= 0 {
		capacity = 1
	}
	return &ChannelSubscriber{rc: ringchan.New[protocol.DeviceState](capacity)}
}

func (s *ChannelSubscriber) OnState(state protocol.DeviceState) error {
	if !s.rc.Send(state) {
		return ErrSubscriberClosed
	}
	return nil
}

// C returns the state stream. It is closed by Close.
func (s *ChannelSubscriber) C() <-chan protocol.DeviceState {
	return s.rc.C()
}

// Dropped returns how many states were overwritten before being read.
func (s *ChannelSubscriber) Dropped() uint64 {
	return s.rc.Dropped()
}

func (s *ChannelSubscriber) Close() {
	s.rc.Close()
}

// subscriberQueueSize bounds the states buffered for one slow subscriber.
const subscriberQueueSize = 16

type subscriberEntry struct {
	id    uint64
	sub   Subscriber
	queue *ringchan.RingChannel[protocol.DeviceState]
}

// subscriberSet is the registry shared by Session.Subscribe and the pump.
//
// Every subscriber owns a queue drained by its own goroutine, so publish never
// waits on OnState and a stalled subscriber only falls behind on its own
// queue. Membership changes take the write lock; publish takes the read lock.
type subscriberSet struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []*subscriberEntry
	closed  bool

	logger   *logrus.Logger
	failures atomic.Uint64
}

func newSubscriberSet(logger *logrus.Logger) *subscriberSet {
	if logger == nil {
		logger = logrus.New()
	}
	return &subscriberSet{logger: logger}
}

func (s *subscriberSet) add(sub Subscriber) func() {
	s.mu.Lock()
	s.nextID++
	e := &subscriberEntry{
		id:    s.nextID,
		sub:   sub,
		queue: ringchan.New[protocol.DeviceState](subscriberQueueSize),
	}
	if s.closed {
		e.queue.Close()
	} else {
		s.entries = append(s.entries, e)
	}
	s.mu.Unlock()

	groutine.Go(context.Background(), fmt.Sprintf("pad-subscriber-%d", e.id), func(context.Context) {
		s.drain(e)
	})

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(e.id) })
	}
}

func (s *subscriberSet) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]*subscriberEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.id == id {
			e.queue.Close()
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
}

// publish queues state for every subscriber without waiting for delivery.
func (s *subscriberSet) publish(state protocol.DeviceState) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		e.queue.Send(state)
	}
}

// close stops accepting states and releases every drain goroutine once its
// in-flight delivery returns. Later adds are closed immediately.
func (s *subscriberSet) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for _, e := range s.entries {
		e.queue.Close()
	}
	s.entries = nil
}

func (s *subscriberSet) drain(e *subscriberEntry) {
	for state := range e.queue.C() {
		if err := deliver(e.sub, state); err != nil {
			s.failures.Add(1)
			s.logger.WithFields(logrus.Fields{
				"subscriber": e.id,
			}).WithError(err).Warn("Subscriber failed to handle state")
		}
	}
	if dropped := e.queue.Dropped(); dropped > 0 {
		s.logger.WithFields(logrus.Fields{
			"subscriber": e.id,
			"dropped":    dropped,
		}).Debug("Subscriber fell behind")
	}
}

func (s *subscriberSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func deliver(sub Subscriber, state protocol.DeviceState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panic: %v", r)
		}
	}()
	return sub.OnState(state)
}
