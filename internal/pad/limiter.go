package pad

import (
	"context"
	"time"
)

// MinCommandInterval is the minimum spacing between two frames reaching the
// device. Closer commands overrun the firmware's receive handling.
const MinCommandInterval = 890 * time.Millisecond

// Clock abstracts time so the limiter can be driven by tests
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// RateLimiter tracks the last transmission and computes how long the next one
// must wait.
//
// RateLimiter is not safe for concurrent use on its own: WaitForTurn and
// MarkSent must run inside one critical section together with the write they
// guard (see CommandChannel).
type RateLimiter struct {
	interval time.Duration
	clock    Clock
	last     time.Time // zero until the first MarkSent
}

// NewRateLimiter creates a limiter enforcing interval between transmissions.
// A nil clock selects SystemClock.
func NewRateLimiter(interval time.Duration, clock Clock) *RateLimiter {
	if clock == nil {
		clock = SystemClock
	}
	return &RateLimiter{interval: interval, clock: clock}
}

// Interval returns the enforced spacing.
func (l *RateLimiter) Interval() time.Duration {
	return l.interval
}

// Delay returns how long the caller has to wait before transmitting now.
// Nothing sent yet means no wait; a clock that went backwards costs a full interval.
func (l *RateLimiter) Delay() time.Duration {
	if l.last.IsZero() {
		return 0
	}
	elapsed := l.clock.Now().Sub(l.last)
	if elapsed < 0 {
		return l.interval
	}
	if elapsed < l.interval {
		return l.interval - elapsed
	}
	return 0
}

// WaitForTurn blocks for Delay. It returns ctx.Err() if ctx ends first, in
// which case the caller must not transmit.
func (l *RateLimiter) WaitForTurn(ctx context.Context) error {
	d := l.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-l.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkSent records now as the last transmission time.
func (l *RateLimiter) MarkSent() {
	l.last = l.clock.Now()
}

// LastSent returns the last transmission time, zero if nothing was sent.
func (l *RateLimiter) LastSent() time.Time {
	return l.last
}
