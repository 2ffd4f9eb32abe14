package goble

import (
	"fmt"

	"github.com/srg/padctl/internal/device"
)

// darwinPoweredOff is what CoreBluetooth reports when the adapter is off.
const darwinPoweredOff = "central manager has invalid state: have=4 want=5: is Bluetooth turned on?"

// NormalizeError maps go-ble error strings to structured device errors.
// It ensures consistent handling even if the upstream library changes messages slightly.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if err.Error() == darwinPoweredOff {
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	}
	return device.NormalizeError(err)
}
