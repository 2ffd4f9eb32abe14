// Package mocks holds testify mocks for the go-ble types and the driver's
// transport interfaces.
package mocks

import (
	"context"
	"sync"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockAddr mocks ble.Addr
type MockAddr struct {
	mock.Mock
}

func (m *MockAddr) String() string {
	return m.Called().String(0)
}

// MockAdvertisement mocks ble.Advertisement
type MockAdvertisement struct {
	mock.Mock
}

func (m *MockAdvertisement) LocalName() string {
	return m.Called().String(0)
}

func (m *MockAdvertisement) ManufacturerData() []byte {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]byte)
	}
	return nil
}

func (m *MockAdvertisement) ServiceData() []ble.ServiceData {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.ServiceData)
	}
	return nil
}

func (m *MockAdvertisement) Services() []ble.UUID {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.UUID)
	}
	return nil
}

func (m *MockAdvertisement) OverflowService() []ble.UUID {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.UUID)
	}
	return nil
}

func (m *MockAdvertisement) TxPowerLevel() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Connectable() bool {
	return m.Called().Bool(0)
}

func (m *MockAdvertisement) SolicitedService() []ble.UUID {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.UUID)
	}
	return nil
}

func (m *MockAdvertisement) RSSI() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Addr() ble.Addr {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(ble.Addr)
	}
	return nil
}

// MockBLEDevice mocks the subset of ble.Device used by the go-ble adapter
type MockBLEDevice struct {
	mock.Mock
}

func (m *MockBLEDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	args := m.Called(ctx, a)
	if v := args.Get(0); v != nil {
		return v.(ble.Client), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBLEDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return m.Called(ctx, allowDup, h).Error(0)
}

func (m *MockBLEDevice) Stop() error {
	return m.Called().Error(0)
}

// MockGATTClient mocks the subset of ble.Client used by the go-ble adapter.
//
// Subscribe stores the handler so tests can push notifications with Notify.
// Disconnected returns a channel closed by Drop.
type MockGATTClient struct {
	mock.Mock

	mu           sync.Mutex
	handlers     map[*ble.Characteristic]ble.NotificationHandler
	disconnected chan struct{}
}

func NewMockGATTClient() *MockGATTClient {
	return &MockGATTClient{
		handlers:     make(map[*ble.Characteristic]ble.NotificationHandler),
		disconnected: make(chan struct{}),
	}
}

func (m *MockGATTClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	if v := args.Get(0); v != nil {
		return v.(*ble.Profile), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockGATTClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *MockGATTClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	err := m.Called(c, ind, h).Error(0)
	if err == nil {
		m.mu.Lock()
		m.handlers[c] = h
		m.mu.Unlock()
	}
	return err
}

func (m *MockGATTClient) Unsubscribe(c *ble.Characteristic, ind bool) error {
	return m.Called(c, ind).Error(0)
}

func (m *MockGATTClient) CancelConnection() error {
	return m.Called().Error(0)
}

func (m *MockGATTClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

// Notify invokes the handler registered for c, as the radio stack would.
func (m *MockGATTClient) Notify(c *ble.Characteristic, value []byte) bool {
	m.mu.Lock()
	h, ok := m.handlers[c]
	m.mu.Unlock()
	if !ok {
		return false
	}
	h(value)
	return true
}

// Drop simulates a link loss reported by the stack.
func (m *MockGATTClient) Drop() {
	close(m.disconnected)
}
