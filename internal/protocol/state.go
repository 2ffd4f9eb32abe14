package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StateFrameLen is the minimum length of a complete inbound state frame.
const StateFrameLen = 15

// Offsets of the inbound state frame fields.
const (
	offBelt      = 2
	offSpeed     = 3
	offMode      = 4
	offTime      = 5
	offDistance  = 8
	offSteps     = 11
	offLastSpeed = 14
	counterLen   = 3
)

// Decode errors
var (
	// ErrNotAStateFrame is returned for frames that do not start with the state header pair.
	ErrNotAStateFrame = errors.New("not a state frame")

	// ErrShortFrame is returned for frames with a state header but fewer bytes than the layout needs.
	ErrShortFrame = errors.New("state frame too short")
)

// DecodeError describes an inbound frame the decoder rejected
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: % x", e.Err, e.Raw)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// BeltState is the belt motion status reported by the device
type BeltState uint8

const (
	BeltStationary BeltState = 0
	BeltMoving     BeltState = 1
	BeltUnknown    BeltState = 0xFF
)

// BeltStateFromByte maps a wire value to a BeltState; unmatched values map to BeltUnknown.
func BeltStateFromByte(b byte) BeltState {
	switch b {
	case 0:
		return BeltStationary
	case 1:
		return BeltMoving
	default:
		return BeltUnknown
	}
}

func (s BeltState) String() string {
	switch s {
	case BeltStationary:
		return "stationary"
	case BeltMoving:
		return "moving"
	default:
		return "unknown"
	}
}

// MarshalText encodes the belt state as its name
func (s BeltState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode is the device operating mode
type Mode uint8

const (
	ModeAutomatic Mode = 0
	ModeManual    Mode = 1
	ModeStandby   Mode = 2
	ModeUnknown   Mode = 0xFF
)

// ModeFromByte maps a wire value to a Mode; unmatched values map to ModeUnknown.
func ModeFromByte(b byte) Mode {
	switch b {
	case 0:
		return ModeAutomatic
	case 1:
		return ModeManual
	case 2:
		return ModeStandby
	default:
		return ModeUnknown
	}
}

// ParseMode parses a mode name as accepted by the CLI and HTTP layer.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "automatic", "auto", "0":
		return ModeAutomatic, nil
	case "manual", "1":
		return ModeManual, nil
	case "standby", "2":
		return ModeStandby, nil
	default:
		return ModeUnknown, fmt.Errorf("unknown mode %q (must be automatic, manual or standby)", s)
	}
}

// Code returns the byte sent on the wire for the mode.
func (m Mode) Code() byte {
	return byte(m)
}

func (m Mode) String() string {
	switch m {
	case ModeAutomatic:
		return "automatic"
	case ModeManual:
		return "manual"
	case ModeStandby:
		return "standby"
	default:
		return "unknown"
	}
}

// MarshalText encodes the mode as its name
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// DeviceState is a snapshot decoded from one state notification.
type DeviceState struct {
	Belt      BeltState `json:"belt"`
	Speed     uint8     `json:"speed"`
	Mode      Mode      `json:"mode"`
	Time      uint32    `json:"time"`
	Distance  uint32    `json:"distance"`
	Steps     uint32    `json:"steps"`
	LastSpeed uint8     `json:"last_speed"`

	ReceivedAt time.Time `json:"received_at"`
}

// String renders the state on one line for the CLI and logs
func (s DeviceState) String() string {
	return fmt.Sprintf("belt=%s speed=%d mode=%s time=%ds distance=%d steps=%d last_speed=%d",
		s.Belt, s.Speed, s.Mode, s.Time, s.Distance, s.Steps, s.LastSpeed)
}

// JSON returns the state encoded as a JSON object.
func (s DeviceState) JSON() []byte {
	data, _ := json.Marshal(s)
	return data
}

// IsStateFrame reports whether raw starts with the state header pair.
func IsStateFrame(raw []byte) bool {
	return len(raw) >= 2 && raw[0] == StateHeader && raw[1] == StateClass
}

// Decode turns an inbound notification into a DeviceState.
// Unknown belt-state and mode values decode to their Unknown variants; only a
// missing header or a truncated frame is rejected.
func Decode(raw []byte) (DeviceState, error) {
	if !IsStateFrame(raw) {
		return DeviceState{}, &DecodeError{Raw: raw, Err: ErrNotAStateFrame}
	}
	if len(raw) < StateFrameLen {
		return DeviceState{}, &DecodeError{Raw: raw, Err: ErrShortFrame}
	}

	return DeviceState{
		Belt:      BeltStateFromByte(raw[offBelt]),
		Speed:     raw[offSpeed],
		Mode:      ModeFromByte(raw[offMode]),
		Time:      bigEndian(raw[offTime : offTime+counterLen]),
		Distance:  bigEndian(raw[offDistance : offDistance+counterLen]),
		Steps:     bigEndian(raw[offSteps : offSteps+counterLen]),
		LastSpeed: raw[offLastSpeed],
	}, nil
}

// bigEndian decodes an arbitrary-width most-significant-byte-first counter.
func bigEndian(b []byte) uint32 {
	var v uint32
	for i, x := range b {
		v += uint32(x) << (8 * uint(len(b)-1-i))
	}
	return v
}
