package device

import (
	"errors"
	"fmt"
)

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	NotInitialized   ConnectionState = "not_initialized"
	BluetoothOff     ConnectionState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrNotInitialized   = &ConnectionError{State: NotInitialized}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff}
)

// Operation errors
var (
	ErrUnsupported = errors.New("unsupported")
	ErrClosed      = errors.New("radio closed")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Peripheral is the platform handle of a connected remote device.
type Peripheral interface {
	ID() string
	Name() string
}

// Service is the platform handle of a discovered GATT service.
type Service interface {
	UUID() string
}

// Characteristic is the platform handle of a discovered GATT characteristic.
type Characteristic interface {
	UUID() string
	Properties() Properties
}

// DisplayName returns the advertised name or a placeholder when the peripheral has none.
func DisplayName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}
