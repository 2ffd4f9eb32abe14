package main

import (
	"errors"
	"fmt"

	"github.com/srg/padctl/internal/device"
	"github.com/srg/padctl/internal/pad"
	"github.com/srg/padctl/scanner"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the link dropped while a command was waiting for the pad.
	ErrConnectionLost = errors.New("connection lost")

	// ErrNoState indicates the pad did not report its state in time.
	ErrNoState = errors.New("no state received from the pad")
)

// FormatUserError turns err into a message suitable for the terminal.
func FormatUserError(err error) string {
	var transportErr *pad.TransportError

	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return device.ErrBluetoothOff.Msg
	case errors.Is(err, scanner.ErrNoDevice):
		return fmt.Sprintf("%v\nIs the pad powered on and disconnected from the vendor app? Use --address to skip scanning.", err)
	case errors.Is(err, pad.ErrCharacteristicNotFound):
		return fmt.Sprintf("the device does not expose the WalkingPad service: %v", err)
	case errors.As(err, &transportErr) && errors.Is(err, device.ErrTimeout):
		return fmt.Sprintf("the pad did not accept %s in time", transportErr.Command)
	case errors.Is(err, ErrConnectionLost):
		return "connection to the pad was lost"
	default:
		return err.Error()
	}
}
