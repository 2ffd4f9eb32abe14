package pad

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/groutine"
	"github.com/srg/padctl/internal/protocol"
)

// Pump drains raw notifications, decodes them and fans the resulting states
// out to subscribers. It runs until Stop is called or the source closes.
type Pump struct {
	source <-chan device.Notification
	subs   *subscriberSet
	clock  Clock
	logger *logrus.Logger

	latest  atomic.Pointer[protocol.DeviceState]
	decoded atomic.Uint64
	dropped atomic.Uint64

	startOnce sync.Once
	cancel    context.CancelFunc
	done      <-chan struct{}
}

func newPump(source <-chan device.Notification, subs *subscriberSet, clock Clock, logger *logrus.Logger) *Pump {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Pump{source: source, subs: subs, clock: clock, logger: logger}
}

// Start launches the pump goroutine. Subsequent calls are no-ops.
func (p *Pump) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		p.done = groutine.Go(ctx, "pad-notification-pump", p.run)
	})
}

// Stop cancels the pump and waits for it to exit. It does not wait for a
// subscriber still inside OnState.
func (p *Pump) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

// Done is closed once the pump goroutine has exited.
func (p *Pump) Done() <-chan struct{} {
	return p.done
}

// Latest returns the most recently decoded state.
func (p *Pump) Latest() (protocol.DeviceState, bool) {
	st := p.latest.Load()
	if st == nil {
		return protocol.DeviceState{}, false
	}
	return *st, true
}

func (p *Pump) run(ctx context.Context) {
	p.logger.WithField("goroutine", groutine.Name(ctx)).Debug("Notification pump started")
	defer p.logger.Debug("Notification pump stopped")
	defer p.subs.close()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-p.source:
			if !ok {
				p.logger.Debug("Notification source closed")
				return
			}
			p.handle(n)
		}
	}
}

func (p *Pump) handle(n device.Notification) {
	state, err := protocol.Decode(n.Value)
	if err != nil {
		p.dropped.Add(1)
		p.logger.WithFields(logrus.Fields{
			"uuid": n.UUID,
			"len":  len(n.Value),
		}).WithError(err).Debug("Dropping notification")
		return
	}

	if n.TsUs > 0 {
		state.ReceivedAt = time.UnixMicro(n.TsUs)
	} else {
		state.ReceivedAt = p.clock.Now()
	}
	p.decoded.Add(1)
	p.latest.Store(&state)

	p.subs.publish(state)
}
