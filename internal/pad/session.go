package pad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/protocol"
)

// Characteristic UUID fragments exposed by the pad's FE00 service.
const (
	NotifyCharacteristicID = "0000fe01"
	WriteCharacteristicID  = "0000fe02"
)

// Options tune a Session. Zero values select the defaults.
type Options struct {
	Logger          *logrus.Logger
	CommandInterval time.Duration
	Clock           Clock
	NotifyID        string
	WriteID         string
	Connect         *device.ConnectOptions
}

// Option mutates Options.
type Option func(*Options)

func WithLogger(logger *logrus.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithCommandInterval overrides MinCommandInterval. Intended for tests and
// firmware variants that tolerate tighter spacing.
func WithCommandInterval(d time.Duration) Option {
	return func(o *Options) { o.CommandInterval = d }
}

func WithClock(clock Clock) Option {
	return func(o *Options) { o.Clock = clock }
}

// WithCharacteristicIDs overrides the UUID fragments used to locate the
// notification and command characteristics.
func WithCharacteristicIDs(notify, write string) Option {
	return func(o *Options) {
		o.NotifyID = notify
		o.WriteID = write
	}
}

// WithConnectOptions sets the transport options used when Connect has to dial.
func WithConnectOptions(opts *device.ConnectOptions) Option {
	return func(o *Options) { o.Connect = opts }
}

func defaultOptions() Options {
	return Options{
		CommandInterval: MinCommandInterval,
		Clock:           SystemClock,
		NotifyID:        NotifyCharacteristicID,
		WriteID:         WriteCharacteristicID,
		Connect:         device.DefaultConnectOptions(),
	}
}

// Stats is a point-in-time view of session counters.
type Stats struct {
	CommandsSent   uint64 `json:"commands_sent"`
	CommandsFailed uint64 `json:"commands_failed"`
	FramesDecoded  uint64 `json:"frames_decoded"`
	FramesDropped  uint64 `json:"frames_dropped"`
	Failures       uint64 `json:"subscriber_failures"`
	Subscribers    int    `json:"subscribers"`
}

// Session is a live connection to one WalkingPad.
//
// Commands may be issued from any goroutine; they are serialized and spaced
// by the CommandChannel. Decoded states are pushed to subscribers by the pump.
type Session struct {
	peripheral device.Peripheral
	notifyChar device.Characteristic
	writeChar  device.Characteristic

	channel *CommandChannel
	subs    *subscriberSet
	pump    *Pump
	logger  *logrus.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	closeErr  error
}

// Connect establishes a session on p.
//
// The peripheral is dialed if it is not connected yet and its profile is
// discovered if no characteristics are known. Any failure is returned as
// *ConnectError; a missing characteristic additionally matches
// ErrCharacteristicNotFound.
func Connect(ctx context.Context, p device.Peripheral, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = logrus.New()
	}
	if o.Clock == nil {
		o.Clock = SystemClock
	}
	if o.Connect == nil {
		o.Connect = device.DefaultConnectOptions()
	}

	logger := o.Logger
	log := logger.WithField("address", p.Address())

	dialed := false
	if !p.IsConnected() {
		log.Info("Connecting to device...")
		if err := p.Connect(ctx, o.Connect); err != nil {
			return nil, &ConnectError{Op: "connect", Err: device.NormalizeError(err)}
		}
		dialed = true
	}

	fail := func(err error) (*Session, error) {
		if dialed {
			if derr := p.Disconnect(); derr != nil {
				log.WithError(derr).Warn("Failed to disconnect after connect error")
			}
		}
		return nil, err
	}

	if len(p.Characteristics()) == 0 {
		log.Debug("Discovering profile...")
		if err := p.DiscoverProfile(ctx); err != nil {
			return fail(&ConnectError{Op: "discover", Err: device.NormalizeError(err)})
		}
	}

	chars := p.Characteristics()
	notifyChar, err := device.FindCharacteristic(chars, o.NotifyID)
	if err != nil {
		return fail(&ConnectError{Op: "lookup", Err: fmt.Errorf("%w: %w", ErrCharacteristicNotFound, err)})
	}
	writeChar, err := device.FindCharacteristic(chars, o.WriteID)
	if err != nil {
		return fail(&ConnectError{Op: "lookup", Err: fmt.Errorf("%w: %w", ErrCharacteristicNotFound, err)})
	}

	if err := p.Subscribe(ctx, notifyChar); err != nil {
		return fail(&ConnectError{Op: "subscribe", Err: device.NormalizeError(err)})
	}

	subs := newSubscriberSet(logger)
	s := &Session{
		peripheral: p,
		notifyChar: notifyChar,
		writeChar:  writeChar,
		channel:    NewCommandChannel(writeChar, NewRateLimiter(o.CommandInterval, o.Clock), o.Connect.WriteTimeout, logger),
		subs:       subs,
		pump:       newPump(p.Notifications(), subs, o.Clock, logger),
		logger:     logger,
	}
	// the pump outlives Connect's ctx; it is stopped by Disconnect
	s.pump.Start(context.Background())

	log.WithFields(logrus.Fields{
		"notify": device.ShortenUUID(notifyChar.UUID()),
		"write":  device.ShortenUUID(writeChar.UUID()),
	}).Info("Session established")
	return s, nil
}

// Address returns the peripheral address.
func (s *Session) Address() string {
	return s.peripheral.Address()
}

// Characteristics returns every characteristic discovered on the pad.
func (s *Session) Characteristics() []device.Characteristic {
	return s.peripheral.Characteristics()
}

// Send transmits an arbitrary command.
func (s *Session) Send(ctx context.Context, cmd protocol.Command) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.channel.Send(ctx, cmd)
}

// StartBelt starts the belt.
func (s *Session) StartBelt(ctx context.Context) error {
	return s.Send(ctx, protocol.StartBelt())
}

// StopBelt stops the belt by setting speed 0.
func (s *Session) StopBelt(ctx context.Context) error {
	return s.Send(ctx, protocol.Stop())
}

// SetSpeed sends speed as-is; range checks belong to the caller.
func (s *Session) SetSpeed(ctx context.Context, speed uint8) error {
	return s.Send(ctx, protocol.SetSpeed(speed))
}

func (s *Session) SetMode(ctx context.Context, mode protocol.Mode) error {
	return s.Send(ctx, protocol.SetMode(mode))
}

// RequestStats asks the device to push a state notification.
func (s *Session) RequestStats(ctx context.Context) error {
	return s.Send(ctx, protocol.RequestStats())
}

func (s *Session) RequestProfile(ctx context.Context) error {
	return s.Send(ctx, protocol.RequestProfile())
}

// Subscribe registers sub for every state decoded from now on. The returned
// function removes it; calling it more than once is harmless.
func (s *Session) Subscribe(sub Subscriber) (unsubscribe func()) {
	return s.subs.add(sub)
}

// Latest returns the most recent decoded state, if any arrived yet.
func (s *Session) Latest() (protocol.DeviceState, bool) {
	return s.pump.Latest()
}

// Done is closed when notification delivery stops, either because of
// Disconnect or because the transport dropped the link.
func (s *Session) Done() <-chan struct{} {
	return s.pump.Done()
}

func (s *Session) Stats() Stats {
	sent, failed := s.channel.Stats()
	return Stats{
		CommandsSent:   sent,
		CommandsFailed: failed,
		FramesDecoded:  s.pump.decoded.Load(),
		FramesDropped:  s.pump.dropped.Load(),
		Failures:       s.subs.failures.Load(),
		Subscribers:    s.subs.len(),
	}
}

// Disconnect stops the pump and releases the transport. The session rejects
// further commands with ErrSessionClosed. Later calls return the first result.
func (s *Session) Disconnect() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.pump.Stop()

		if err := s.peripheral.Disconnect(); err != nil && !errors.Is(device.NormalizeError(err), device.ErrNotConnected) {
			s.closeErr = &ConnectError{Op: "disconnect", Err: err}
			s.logger.WithError(err).Error("Failed to disconnect")
			return
		}
		s.logger.WithField("address", s.peripheral.Address()).Info("Disconnected")
	})
	return s.closeErr
}
