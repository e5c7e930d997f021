// Package uinput creates virtual input devices through the Linux uinput
// module and injects events into them.
package uinput

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevicePath is the uinput control node.
const DevicePath = "/dev/uinput"

// DeviceID mirrors struct input_id.
type DeviceID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// Device is a virtual input device. It exists for as long as the uinput fd
// is held open.
type Device struct {
	*EventWriter

	name string
	f    *os.File
	once sync.Once
}

// Create creates a virtual device on DevicePath.
func Create(name string, id DeviceID, caps Capabilities) (*Device, error) {
	return CreateAt(DevicePath, name, id, caps)
}

// CreateAt creates a virtual device using the uinput node at path.
func CreateAt(path, name string, id DeviceID, caps Capabilities) (*Device, error) {
	if len(name) > maxNameLen {
		return nil, &DeviceError{Op: "create", Err: fmt.Errorf("name %q exceeds %d-byte limit", name, maxNameLen)}
	}
	if len(caps.Keys) == 0 && len(caps.Axes) == 0 {
		return nil, &DeviceError{Op: "create", Err: fmt.Errorf("no capabilities declared")}
	}

	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &DeviceError{Op: "open " + path, Err: err}
	}

	fdToClose := fd
	defer func() {
		if fdToClose >= 0 {
			unix.Close(fdToClose)
		}
	}()

	if err := declare(fd, caps); err != nil {
		return nil, &DeviceError{Op: "create", Err: err}
	}
	if err := setup(fd, name, id); err != nil {
		return nil, &DeviceError{Op: "create", Err: err}
	}
	if err := ioctl(fd, ioReq(nrDevCreate), 0); err != nil {
		return nil, &DeviceError{Op: "create", Err: fmt.Errorf("UI_DEV_CREATE: %w", err)}
	}

	fdToClose = -1
	f := os.NewFile(uintptr(fd), path)
	return &Device{EventWriter: NewEventWriter(f), name: name, f: f}, nil
}

// declare issues the UI_SET_*BIT and UI_ABS_SETUP ioctls for caps.
func declare(fd int, caps Capabilities) error {
	evBits := []EventType{EV_SYN}
	if len(caps.Keys) > 0 {
		evBits = append(evBits, EV_KEY)
	}
	if len(caps.Axes) > 0 {
		evBits = append(evBits, EV_ABS)
	}
	for _, et := range evBits {
		if err := ioctl(fd, setBitReq(nrSetEvBit), uintptr(et)); err != nil {
			return fmt.Errorf("UI_SET_EVBIT %#x: %w", et, err)
		}
	}

	for _, code := range caps.Keys {
		if err := ioctl(fd, setBitReq(nrSetKeyBit), uintptr(code)); err != nil {
			return fmt.Errorf("UI_SET_KEYBIT %#x: %w", code, err)
		}
	}

	for _, code := range caps.sortedAxes() {
		if err := ioctl(fd, setBitReq(nrSetAbsBit), uintptr(code)); err != nil {
			return fmt.Errorf("UI_SET_ABSBIT %#x: %w", code, err)
		}
		abs := absSetup{Code: uint16(code), Info: caps.Axes[code]}
		if err := ioctl(fd, iow(nrAbsSetup, unsafe.Sizeof(abs)), uintptr(unsafe.Pointer(&abs))); err != nil {
			return fmt.Errorf("UI_ABS_SETUP %#x: %w", code, err)
		}
	}
	return nil
}

// absSetup mirrors struct uinput_abs_setup.
type absSetup struct {
	Code uint16
	_    uint16
	Info AbsInfo
}

// devSetup mirrors struct uinput_setup.
type devSetup struct {
	ID           DeviceID
	Name         [maxNameLen]byte
	FFEffectsMax uint32
}

func setup(fd int, name string, id DeviceID) error {
	s := devSetup{ID: id}
	copy(s.Name[:], name)
	if err := ioctl(fd, iow(nrDevSetup, unsafe.Sizeof(s)), uintptr(unsafe.Pointer(&s))); err != nil {
		return fmt.Errorf("UI_DEV_SETUP: %w", err)
	}
	return nil
}

// Name returns the name the device was created with.
func (d *Device) Name() string {
	if d == nil {
		return ""
	}
	return d.name
}

// Close destroys the device. Calling Close more than once, or on a nil
// Device, is a no-op.
func (d *Device) Close() error {
	if d == nil {
		return nil
	}
	var err error
	d.once.Do(func() {
		destroyErr := ioctl(int(d.f.Fd()), ioReq(nrDevDestroy), 0)
		closeErr := d.f.Close()
		switch {
		case destroyErr != nil:
			err = &DeviceError{Op: "destroy", Err: destroyErr}
		case closeErr != nil:
			err = &DeviceError{Op: "close", Err: closeErr}
		}
	})
	return err
}
