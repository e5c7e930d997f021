package uinput

import (
	"errors"
	"fmt"
	"os"
)

// DeviceError reports a failure to create or drive a uinput device.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("uinput %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Hint returns an operator-facing suggestion for environmental failures, or
// an empty string when there is nothing actionable to suggest.
func (e *DeviceError) Hint() string {
	switch {
	case errors.Is(e.Err, os.ErrPermission):
		return "run with sudo or add a udev rule granting access to " + DevicePath
	case errors.Is(e.Err, os.ErrNotExist):
		return "load the uinput kernel module (modprobe uinput) and run with sudo"
	}
	return ""
}
