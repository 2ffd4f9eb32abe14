package goble

import (
	"fmt"
	"time"

	"github.com/go-ble/ble"
	"github.com/srg/padctl/internal/device"
)

// Characteristic wraps a discovered *ble.Characteristic.
type Characteristic struct {
	uuid  string
	ble   *ble.Characteristic
	owner *Peripheral
}

func newCharacteristic(c *ble.Characteristic, owner *Peripheral) *Characteristic {
	return &Characteristic{
		uuid:  device.ExpandUUID(c.UUID.String()),
		ble:   c,
		owner: owner,
	}
}

// UUID returns the expanded, lower-case 128-bit UUID.
func (c *Characteristic) UUID() string {
	return c.uuid
}

// Properties returns the characteristic property names.
func (c *Characteristic) Properties() []string {
	return PropertyNames(c.ble.Property)
}

// Write sends data in a single ATT operation. A non-positive timeout waits
// for the stack indefinitely.
func (c *Characteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	client := c.owner.currentClient()
	if client == nil {
		return device.ErrNotConnected
	}

	// Perform write with timeout to prevent indefinite blocking
	done := make(chan error, 1)
	go func() {
		done <- client.WriteCharacteristic(c.ble, data, !withResponse)
	}()

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to write characteristic %s: %w", c.uuid, NormalizeError(err))
		}
		return nil
	case <-timeoutCh:
		return fmt.Errorf("%w: writing characteristic %s after %v", device.ErrTimeout, c.uuid, timeout)
	}
}
