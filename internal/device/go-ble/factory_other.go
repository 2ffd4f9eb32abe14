//go:build !darwin && !linux

package goble

import (
	"errors"
	"runtime"
)

// DeviceFactory creates the host BLE device (can be overridden in tests)
//
//nolint:revive // DeviceFactory name is intentional for test mocking
var DeviceFactory = func() (Device, error) {
	return nil, errors.New("BLE is not supported on " + runtime.GOOS)
}
