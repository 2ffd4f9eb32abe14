package protocol

import (
	"encoding/hex"
	"fmt"
)

// Wire constants of the WalkingPad command protocol.
const (
	HeaderByte  byte = 0xF7 // first byte of every outbound frame
	TrailerByte byte = 0xFD // last byte of every outbound frame

	ClassShort   byte = 0xA2 // class of the single-value commands
	ClassProfile byte = 0xA5 // class of the profile request

	StateHeader byte = 0xF8 // first byte of an inbound state frame
	StateClass  byte = 0xA2 // second byte of an inbound state frame
)

// Speed bounds accepted at the caller-facing boundary.
const (
	MinSpeed = 0
	MaxSpeed = 60
)

// profilePayload is the fixed payload of the profile request.
var profilePayload = []byte{96, 74, 77, 147, 113, 41}

// CommandKind identifies a logical command understood by the device
type CommandKind int

const (
	CmdRequestStats CommandKind = iota
	CmdSetSpeed
	CmdSetMode
	CmdStartBelt
	CmdRequestProfile
)

// String returns a short name used in logs and errors
func (k CommandKind) String() string {
	switch k {
	case CmdRequestStats:
		return "request_stats"
	case CmdSetSpeed:
		return "set_speed"
	case CmdSetMode:
		return "set_mode"
	case CmdStartBelt:
		return "start_belt"
	case CmdRequestProfile:
		return "request_profile"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// class returns the class byte placed at offset 1 of the frame.
func (k CommandKind) class() byte {
	if k == CmdRequestProfile {
		return ClassProfile
	}
	return ClassShort
}

// subclass returns the first payload byte of the single-value commands.
func (k CommandKind) subclass() byte {
	switch k {
	case CmdSetSpeed:
		return 0x01
	case CmdSetMode:
		return 0x02
	case CmdStartBelt:
		return 0x04
	default:
		return 0x00
	}
}

// Command is an immutable logical intent sent to the device.
// Value carries the speed or mode code and is ignored by kinds without one.
type Command struct {
	Kind  CommandKind
	Value byte
}

// RequestStats asks the device to publish its current state.
func RequestStats() Command { return Command{Kind: CmdRequestStats} }

// SetSpeed sets the belt speed in tenths of km/h. The value is not validated.
func SetSpeed(speed byte) Command { return Command{Kind: CmdSetSpeed, Value: speed} }

// Stop is SetSpeed(0).
func Stop() Command { return SetSpeed(0) }

// SetMode switches the device operating mode.
func SetMode(mode Mode) Command { return Command{Kind: CmdSetMode, Value: mode.Code()} }

// StartBelt starts the belt.
func StartBelt() Command { return Command{Kind: CmdStartBelt, Value: 0x01} }

// RequestProfile asks the device for the stored user profile.
func RequestProfile() Command { return Command{Kind: CmdRequestProfile} }

// Payload returns the command-specific bytes placed between the class byte and the checksum.
func (c Command) Payload() []byte {
	switch c.Kind {
	case CmdRequestProfile:
		out := make([]byte, len(profilePayload))
		copy(out, profilePayload)
		return out
	case CmdRequestStats:
		return []byte{c.Kind.subclass(), 0x00}
	default:
		return []byte{c.Kind.subclass(), c.Value}
	}
}

// Frame encodes the command to its wire representation.
func (c Command) Frame() Frame {
	return Encode(c.Kind, c.Payload()...)
}

// String renders the command for logs
func (c Command) String() string {
	switch c.Kind {
	case CmdSetSpeed:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Value)
	case CmdSetMode:
		return fmt.Sprintf("%s(%s)", c.Kind, ModeFromByte(c.Value))
	default:
		return c.Kind.String()
	}
}

// Frame is the wire form of a command: header, class, payload, checksum, trailer.
type Frame []byte

// Hex renders the frame as lowercase hex for logging.
func (f Frame) Hex() string {
	return hex.EncodeToString(f)
}

// Checksum returns the checksum slot of the frame.
func (f Frame) Checksum() byte {
	if len(f) < 2 {
		return 0
	}
	return f[len(f)-2]
}

// Encode builds the frame of the given kind around payload and fills the checksum slot.
// The caller is responsible for passing a payload of the length the kind expects.
func Encode(kind CommandKind, payload ...byte) Frame {
	frame := make(Frame, 0, len(payload)+4)
	frame = append(frame, HeaderByte, kind.class())
	frame = append(frame, payload...)
	frame = append(frame, 0x00, TrailerByte)
	frame[len(frame)-2] = Checksum(frame)
	return frame
}

// Checksum is the unsigned 8-bit sum of frame[1:len-2], i.e. everything after the
// header byte and before the checksum and trailer bytes. Frames shorter than
// three bytes have an empty checksum region and yield zero.
func Checksum(frame []byte) byte {
	if len(frame) < 3 {
		return 0
	}
	var sum byte
	for _, b := range frame[1 : len(frame)-2] {
		sum += b
	}
	return sum
}
