//go:build linux

package goble

import (
	"github.com/go-ble/ble/linux"
)

// DeviceFactory creates the host BLE device (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (Device, error) {
	dev, err := linux.NewDevice()
	if err != nil {
		return nil, err
	}
	return dev, nil
}
