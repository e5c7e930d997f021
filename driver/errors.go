package driver

import (
	"errors"
	"fmt"

	"gamepad-bridge/uinput"
)

// ErrorKind classifies bridge failures.
type ErrorKind int

const (
	// DeviceCreationFailed: the virtual controller could not be created.
	// Nothing else is started.
	DeviceCreationFailed ErrorKind = iota + 1
	// ConnectionFailed: the port could not be opened. The virtual controller
	// stays active.
	ConnectionFailed
	// ReadFault: reading or decoding failed while running. The run ends and
	// everything is torn down.
	ReadFault
)

func (k ErrorKind) String() string {
	switch k {
	case DeviceCreationFailed:
		return "device creation failed"
	case ConnectionFailed:
		return "connection failed"
	case ReadFault:
		return "read fault"
	default:
		return "unknown error"
	}
}

// BridgeError wraps a failure with its kind.
type BridgeError struct {
	Kind ErrorKind
	Err  error
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *BridgeError) Unwrap() error { return e.Err }

// Hint returns an operator-facing suggestion, if the cause has one.
func (e *BridgeError) Hint() string {
	var de *uinput.DeviceError
	if errors.As(e.Err, &de) {
		if h := de.Hint(); h != "" {
			return h
		}
	}
	if e.Kind == DeviceCreationFailed {
		return "creating a virtual controller usually requires root; try running with sudo"
	}
	return ""
}

// IsKind reports whether err is a *BridgeError of kind k.
func IsKind(err error, k ErrorKind) bool {
	var be *BridgeError
	return errors.As(err, &be) && be.Kind == k
}

var (
	ErrAlreadyStarted = errors.New("bridge already started")
	ErrNoDevice       = errors.New("virtual controller is not active")
	ErrClosed         = errors.New("bridge closed")
	ErrBusy           = errors.New("a simulated press is already pending")
)
