package goble

import (
	"context"
	"errors"

	"github.com/go-ble/ble"
	"github.com/srg/padctl/internal/device"
)

// bleScanner wraps Device to implement device.ScanningDevice
type bleScanner struct {
	dev Device
}

// Scan converts each ble.Advertisement to a device.Advertisement. A scan
// ended by ctx is not an error.
func (s *bleScanner) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	err := s.dev.Scan(ctx, allowDup, func(adv ble.Advertisement) {
		handler(NewAdvertisement(adv))
	})
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return NormalizeError(err)
}

// NewScanner creates a device.ScanningDevice on the host adapter.
func NewScanner() (device.ScanningDevice, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(err)
	}
	return &bleScanner{dev: dev}, nil
}
