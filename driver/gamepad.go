package driver

import (
	"context"
	"errors"
	"sync"
	"time"

	"gamepad-bridge/uinput"
)

// EventSink receives raw input events. *uinput.Device implements it.
type EventSink interface {
	Event(et uinput.EventType, ec uinput.EventCode, val int32) error
	Sync() error
	Close() error
}

var _ EventSink = (*uinput.Device)(nil)

// DeviceConfig is the identity and capability set of the virtual controller.
type DeviceConfig struct {
	Name         string
	ID           uinput.DeviceID
	Capabilities uinput.Capabilities
}

// DeviceFactory creates the virtual controller.
type DeviceFactory func(cfg DeviceConfig) (EventSink, error)

// CreateUinputDevice is the DeviceFactory backed by /dev/uinput.
func CreateUinputDevice(cfg DeviceConfig) (EventSink, error) {
	return uinput.Create(cfg.Name, cfg.ID, cfg.Capabilities)
}

// Button is a controller button the bridge can drive.
type Button struct {
	Name string
	Code uinput.EventCode
}

// ButtonA is the only button the sniffer reports.
var ButtonA = Button{Name: "A", Code: uinput.BTN_A}

// Gamepad turns button state changes into key events on an EventSink. Every
// write is followed by a sync so readers see a complete snapshot.
type Gamepad struct {
	sink      EventSink
	pressed   map[uinput.EventCode]bool
	closeOnce sync.Once
}

// NewGamepad creates a gamepad writing to sink.
func NewGamepad(sink EventSink) *Gamepad {
	return &Gamepad{sink: sink, pressed: make(map[uinput.EventCode]bool)}
}

// SetButton writes the button state followed by SYN_REPORT. Writing the
// current state again is allowed and still syncs.
func (g *Gamepad) SetButton(b Button, pressed bool) error {
	if g == nil || g.sink == nil {
		return ErrNoDevice
	}
	var val int32
	if pressed {
		val = 1
	}
	if err := g.sink.Event(uinput.EV_KEY, b.Code, val); err != nil {
		return err
	}
	if err := g.sink.Sync(); err != nil {
		return err
	}
	g.pressed[b.Code] = pressed
	return nil
}

// Pressed reports the last state written for b.
func (g *Gamepad) Pressed(b Button) bool {
	if g == nil {
		return false
	}
	return g.pressed[b.Code]
}

// SimulatePress presses b, holds it for hold, then releases it. The release
// is written even if ctx ends during the hold.
func (g *Gamepad) SimulatePress(ctx context.Context, b Button, hold time.Duration) error {
	if err := g.SetButton(b, true); err != nil {
		return err
	}

	t := time.NewTimer(hold)
	defer t.Stop()
	var waitErr error
	select {
	case <-t.C:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}

	return errors.Join(g.SetButton(b, false), waitErr)
}

// Close destroys the device. Closing twice or closing a nil Gamepad does
// nothing.
func (g *Gamepad) Close() error {
	if g == nil || g.sink == nil {
		return nil
	}
	var err error
	g.closeOnce.Do(func() {
		err = g.sink.Close()
	})
	return err
}
