package goble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/groutine"
	"github.com/srg/padctl/internal/ringchan"
)

// ----------------------------
// go-ble seams
// ----------------------------

// Device is the subset of ble.Device the adapter needs.
type Device interface {
	Dial(ctx context.Context, a ble.Addr) (ble.Client, error)
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Stop() error
}

// GATTClient is the subset of ble.Client the adapter needs.
type GATTClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// Dialer opens a GATT client to addr (can be overridden in tests)
var Dialer = func(ctx context.Context, addr string) (GATTClient, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	client, err := dev.Dial(ctx, ble.NewAddr(addr))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// closedNotifications is returned by Notifications before the first Connect.
var closedNotifications = func() <-chan device.Notification {
	ch := make(chan device.Notification)
	close(ch)
	return ch
}()

// ----------------------------
// Peripheral
// ----------------------------

// Peripheral implements device.Peripheral on top of go-ble.
type Peripheral struct {
	address string
	logger  *logrus.Logger

	mu         sync.RWMutex
	client     GATTClient
	chars      []*Characteristic
	subscribed []*Characteristic
	notify     *ringchan.RingChannel[device.Notification]
	cancel     context.CancelFunc
}

// NewPeripheral creates an unconnected peripheral for address.
func NewPeripheral(address string, logger *logrus.Logger) *Peripheral {
	if logger == nil {
		logger = logrus.New()
	}
	return &Peripheral{address: address, logger: logger}
}

func (p *Peripheral) Address() string {
	return p.address
}

func (p *Peripheral) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client != nil
}

// Connect dials the peripheral within opts.ConnectTimeout.
func (p *Peripheral) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	if opts == nil {
		opts = device.DefaultConnectOptions()
	}
	if strings.TrimSpace(p.address) == "" {
		return fmt.Errorf("device address is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		p.logger.WithField("address", p.address).Warn("Connection attempt while already connected")
		return device.ErrAlreadyConnected
	}

	p.logger.WithFields(logrus.Fields{
		"address": p.address,
		"timeout": opts.ConnectTimeout,
	}).Info("Connecting to BLE device...")

	connCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	client, err := Dialer(connCtx, p.address)
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"address": p.address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return fmt.Errorf("failed to connect to device with address %q: %w", p.address, NormalizeError(err))
	}

	buffer := opts.NotificationBuffer
	if buffer <= 0 {
		buffer = device.DefaultConnectOptions().NotificationBuffer
	}

	monitorCtx, cancel := context.WithCancel(context.Background())
	p.client = client
	p.chars = nil
	p.subscribed = nil
	p.notify = ringchan.New[device.Notification](buffer)
	p.cancel = cancel

	// CoreBluetooth reports link loss through Disconnected()
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		groutine.Go(monitorCtx, "ble-connection-monitor", func(ctx context.Context) {
			select {
			case <-dc.Disconnected():
				p.logger.WithField("address", p.address).Warn("BLE stack reported disconnection")
				p.dropLink(client)
			case <-ctx.Done():
			}
		})
	} else {
		p.logger.Debug("Client does not support Disconnected() channel")
	}

	p.logger.WithField("address", p.address).Info("BLE device connected successfully")
	return nil
}

// dropLink releases the state of a connection the stack already lost.
func (p *Peripheral) dropLink(client GATTClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != client {
		return
	}
	p.releaseLocked()
}

func (p *Peripheral) releaseLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	if p.notify != nil {
		p.notify.Close()
	}
	p.client = nil
	p.cancel = nil
	p.subscribed = nil
}

// DiscoverProfile discovers services and characteristics. It gives up when
// ctx ends, leaving the go-ble call to finish in the background.
func (p *Peripheral) DiscoverProfile(ctx context.Context) error {
	client := p.currentClient()
	if client == nil {
		return device.ErrNotConnected
	}

	type result struct {
		profile *ble.Profile
		err     error
	}
	done := make(chan result, 1)
	go func() {
		profile, err := client.DiscoverProfile(true)
		done <- result{profile, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return fmt.Errorf("%w: profile discovery: %v", device.ErrTimeout, ctx.Err())
	}
	if res.err != nil {
		return fmt.Errorf("failed to discover profile: %w", NormalizeError(res.err))
	}

	var chars []*Characteristic
	for _, svc := range res.profile.Services {
		for _, c := range svc.Characteristics {
			char := newCharacteristic(c, p)
			p.logger.WithFields(logrus.Fields{
				"service_uuid": svc.UUID.String(),
				"char_uuid":    char.UUID(),
				"properties":   strings.Join(PropertyNames(c.Property), ","),
			}).Debug("Found characteristic")
			chars = append(chars, char)
		}
	}

	p.mu.Lock()
	p.chars = chars
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{
		"address":         p.address,
		"services":        len(res.profile.Services),
		"characteristics": len(chars),
	}).Debug("Profile discovered successfully")
	return nil
}

func (p *Peripheral) Characteristics() []device.Characteristic {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]device.Characteristic, len(p.chars))
	for i, c := range p.chars {
		out[i] = c
	}
	return out
}

// Subscribe enables notifications on char. Values are copied into the
// notification ring; when the consumer falls behind the oldest are dropped so
// the BLE stack callback never blocks.
func (p *Peripheral) Subscribe(_ context.Context, char device.Characteristic) error {
	c, ok := char.(*Characteristic)
	if !ok || c.owner != p {
		return fmt.Errorf("characteristic %s does not belong to %s", char.UUID(), p.address)
	}

	p.mu.RLock()
	client, notify := p.client, p.notify
	p.mu.RUnlock()
	if client == nil {
		return device.ErrNotConnected
	}

	uuid := c.UUID()
	err := client.Subscribe(c.ble, useIndication(c.ble.Property), func(data []byte) {
		value := make([]byte, len(data))
		copy(value, data)
		notify.Send(device.Notification{UUID: uuid, Value: value, TsUs: time.Now().UnixMicro()})
	})
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"char_uuid": uuid,
			"error":     err,
		}).Error("Failed to subscribe to characteristic notifications")
		return fmt.Errorf("failed to subscribe to %s: %w", uuid, NormalizeError(err))
	}

	p.mu.Lock()
	p.subscribed = append(p.subscribed, c)
	p.mu.Unlock()

	p.logger.WithField("char_uuid", uuid).Info("Successfully subscribed to characteristic notifications")
	return nil
}

// Notifications returns the stream of the current connection. It is closed on
// disconnect; reconnecting yields a new stream.
func (p *Peripheral) Notifications() <-chan device.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.notify == nil {
		return closedNotifications
	}
	return p.notify.C()
}

// Disconnect unsubscribes and cancels the connection. Calling it while not
// connected is a no-op.
func (p *Peripheral) Disconnect() error {
	p.mu.Lock()
	client := p.client
	if client == nil {
		p.mu.Unlock()
		p.logger.Debug("Disconnect called but already disconnected")
		return nil
	}
	subscribed := p.subscribed
	p.releaseLocked()
	p.mu.Unlock()

	p.logger.WithField("address", p.address).Info("Disconnecting BLE device...")

	for _, c := range subscribed {
		if err := client.Unsubscribe(c.ble, useIndication(c.ble.Property)); err != nil {
			p.logger.WithFields(logrus.Fields{
				"char_uuid": c.UUID(),
				"error":     err,
			}).Warn("Failed to unsubscribe during disconnect")
		}
	}

	if err := client.CancelConnection(); err != nil {
		p.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	p.logger.Info("BLE device disconnected successfully")
	return nil
}

func (p *Peripheral) currentClient() GATTClient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}
