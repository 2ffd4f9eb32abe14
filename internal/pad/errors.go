package pad

import (
	"errors"
	"fmt"

	"github.com/srg/padctl/internal/protocol"
)

var (
	// ErrCharacteristicNotFound is wrapped by ConnectError when the command or
	// notification characteristic is missing from the discovered profile.
	ErrCharacteristicNotFound = errors.New("characteristic not found")

	// ErrSessionClosed is returned by commands issued after Disconnect.
	ErrSessionClosed = errors.New("session closed")

	// ErrSubscriberClosed is returned by a ChannelSubscriber after Close.
	ErrSubscriberClosed = errors.New("subscriber closed")
)

// ConnectError reports a failure while establishing or tearing down a session.
// Op is one of "connect", "discover", "lookup", "subscribe" or "disconnect".
type ConnectError struct {
	Op  string
	Err error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TransportError reports a failed command write. The transport error is kept
// unchanged and is reachable through errors.Is / errors.As.
type TransportError struct {
	Command protocol.Command
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to send %s: %v", e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
