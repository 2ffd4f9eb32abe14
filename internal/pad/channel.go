package pad

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/protocol"
)

// CommandChannel serializes command frames onto the write characteristic.
//
// The limiter wait, the timestamp update and the transport write happen inside
// one critical section, so concurrent callers can neither interleave bytes nor
// observe the same "last sent" value. A failed write still consumes the
// interval: the device may have received part of the frame.
type CommandChannel struct {
	sem          chan struct{} // 1-slot semaphore guarding limiter + writer
	limiter      *RateLimiter
	writer       device.Characteristic
	writeTimeout time.Duration
	logger       *logrus.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewCommandChannel creates a channel writing through writer.
func NewCommandChannel(writer device.Characteristic, limiter *RateLimiter, writeTimeout time.Duration, logger *logrus.Logger) *CommandChannel {
	if logger == nil {
		logger = logrus.New()
	}
	if limiter == nil {
		limiter = NewRateLimiter(MinCommandInterval, SystemClock)
	}
	return &CommandChannel{
		sem:          make(chan struct{}, 1),
		limiter:      limiter,
		writer:       writer,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Send transmits cmd once the rate limit allows it.
//
// Callers blocked behind another sender, or waiting for their turn, give up
// when ctx ends; nothing is written in that case and ctx.Err() is returned.
// Transport failures are reported as *TransportError.
func (c *CommandChannel) Send(ctx context.Context, cmd protocol.Command) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	if err := c.limiter.WaitForTurn(ctx); err != nil {
		return err
	}

	frame := cmd.Frame()
	c.limiter.MarkSent()
	c.sent.Add(1)

	if err := c.writer.Write(frame, false, c.writeTimeout); err != nil {
		c.failed.Add(1)
		c.logger.WithFields(logrus.Fields{
			"command": cmd.String(),
			"frame":   frame.Hex(),
		}).WithError(err).Warn("Command write failed")
		return &TransportError{Command: cmd, Err: err}
	}

	c.logger.WithFields(logrus.Fields{
		"command": cmd.String(),
		"frame":   frame.Hex(),
	}).Debug("Command sent")
	return nil
}

// Stats returns the number of attempted and failed writes.
func (c *CommandChannel) Stats() (sent, failed uint64) {
	return c.sent.Load(), c.failed.Load()
}

func (c *CommandChannel) String() string {
	sent, failed := c.Stats()
	return fmt.Sprintf("CommandChannel{char=%s, sent=%d, failed=%d}", c.writer.UUID(), sent, failed)
}
