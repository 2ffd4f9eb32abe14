package goble_test

import (
	"context"
	"errors"
	"testing"

	blelib "github.com/go-ble/ble"
	"github.com/srg/padctl/internal/device"
	goble "github.com/srg/padctl/internal/device/go-ble"
	"github.com/srg/padctl/internal/testutils"
	"github.com/srg/padctl/internal/testutils/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func withDevice(t *testing.T, dev goble.Device) {
	original := goble.DeviceFactory
	goble.DeviceFactory = func() (goble.Device, error) { return dev, nil }
	t.Cleanup(func() { goble.DeviceFactory = original })
}

func TestScanner_ConvertsAdvertisements(t *testing.T) {
	ads := testutils.BuildAll(
		testutils.CreateMockAdvertisement("WalkingPad A1", "11:22:33:44:55:66", -60).WithConnectable(true),
		testutils.NewAdvertisementBuilder().FromJSON(`{"name": "Heart Rate", "address": "AA:00:00:00:00:01", "rssi": -80, "connectable": false}`),
	)

	dev := &mocks.MockBLEDevice{}
	dev.On("Scan", mock.Anything, false, mock.Anything).
		Run(func(args mock.Arguments) {
			handler := args.Get(2).(blelib.AdvHandler)
			for _, adv := range ads {
				handler(adv)
			}
		}).
		Return(context.Canceled)
	withDevice(t, dev)

	scanner, err := goble.NewScanner()
	require.NoError(t, err)

	var seen []device.Advertisement
	err = scanner.Scan(context.Background(), false, func(a device.Advertisement) { seen = append(seen, a) })

	require.NoError(t, err, "a scan ended by its context MUST NOT be an error")
	require.Len(t, seen, 2)
	assert.Equal(t, "WalkingPad A1", seen[0].LocalName())
	assert.Equal(t, "11:22:33:44:55:66", seen[0].Addr())
	assert.Equal(t, -60, seen[0].RSSI())
	assert.True(t, seen[0].Connectable())
	assert.False(t, seen[1].Connectable())
}

func TestScanner_NormalizesErrors(t *testing.T) {
	dev := &mocks.MockBLEDevice{}
	dev.On("Scan", mock.Anything, true, mock.Anything).Return(errors.New("Bluetooth is turned off"))
	withDevice(t, dev)

	scanner, err := goble.NewScanner()
	require.NoError(t, err)

	err = scanner.Scan(context.Background(), true, func(device.Advertisement) {})
	assert.ErrorIs(t, err, device.ErrBluetoothOff)
}

func TestNewScanner_FactoryError(t *testing.T) {
	original := goble.DeviceFactory
	goble.DeviceFactory = func() (goble.Device, error) { return nil, errors.New("Bluetooth is turned off") }
	t.Cleanup(func() { goble.DeviceFactory = original })

	_, err := goble.NewScanner()
	assert.ErrorIs(t, err, device.ErrBluetoothOff)
}

func TestPropertyNames(t *testing.T) {
	assert.Equal(t, []string{"Read", "Notify"}, goble.PropertyNames(blelib.CharRead|blelib.CharNotify))
	assert.Empty(t, goble.PropertyNames(0))
}
