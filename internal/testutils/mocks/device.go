package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/srg/padctl/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockCharacteristic mocks device.Characteristic
type MockCharacteristic struct {
	mock.Mock
}

func NewMockCharacteristic(uuid string) *MockCharacteristic {
	m := &MockCharacteristic{}
	m.On("UUID").Return(uuid).Maybe()
	return m
}

func (m *MockCharacteristic) UUID() string {
	return m.Called().String(0)
}

func (m *MockCharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	return m.Called(data, withResponse, timeout).Error(0)
}

// MockPeripheral mocks device.Peripheral.
//
// Notifications is not routed through testify: the mock owns a buffered
// channel that tests feed with Push and end with CloseNotifications.
type MockPeripheral struct {
	mock.Mock

	notifications chan device.Notification
	closeOnce     sync.Once
}

func NewMockPeripheral(buffer int) *MockPeripheral {
	return &MockPeripheral{notifications: make(chan device.Notification, buffer)}
}

func (m *MockPeripheral) Address() string {
	return m.Called().String(0)
}

func (m *MockPeripheral) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *MockPeripheral) Connect(ctx context.Context, opts *device.ConnectOptions) error {
	return m.Called(ctx, opts).Error(0)
}

func (m *MockPeripheral) DiscoverProfile(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockPeripheral) Characteristics() []device.Characteristic {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]device.Characteristic)
	}
	return nil
}

func (m *MockPeripheral) Subscribe(ctx context.Context, char device.Characteristic) error {
	return m.Called(ctx, char).Error(0)
}

func (m *MockPeripheral) Notifications() <-chan device.Notification {
	return m.notifications
}

func (m *MockPeripheral) Disconnect() error {
	return m.Called().Error(0)
}

// Push queues a raw notification value.
func (m *MockPeripheral) Push(uuid string, value []byte) {
	m.notifications <- device.Notification{UUID: uuid, Value: value}
}

// CloseNotifications simulates a link loss.
func (m *MockPeripheral) CloseNotifications() {
	m.closeOnce.Do(func() { close(m.notifications) })
}

// MockScanningDevice mocks device.ScanningDevice. Scan replays the configured
// advertisements to the handler and then waits for ctx to end.
type MockScanningDevice struct {
	mock.Mock

	Advertisements []device.Advertisement
}

func (m *MockScanningDevice) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	args := m.Called(ctx, allowDup)
	if err := args.Error(0); err != nil {
		return err
	}
	for _, adv := range m.Advertisements {
		handler(adv)
	}
	<-ctx.Done()
	return ctx.Err()
}

// StubAdvertisement is a plain device.Advertisement value.
type StubAdvertisement struct {
	Name       string
	Address    string
	Signal     int
	CanConnect bool
}

func (a StubAdvertisement) LocalName() string { return a.Name }
func (a StubAdvertisement) Addr() string      { return a.Address }
func (a StubAdvertisement) RSSI() int         { return a.Signal }
func (a StubAdvertisement) Connectable() bool { return a.CanConnect }
