package uinput

import (
	"fmt"
	"sort"
	"strings"
)

// AbsInfo mirrors struct input_absinfo.
type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// Capabilities declares which keys and absolute axes a device reports.
type Capabilities struct {
	Keys []EventCode
	Axes map[EventCode]AbsInfo
}

// Profile names accepted by ProfileCapabilities.
const (
	ProfileMinimal = "minimal"
	ProfileXbox360 = "xbox360"
)

// MinimalCapabilities declares only BTN_A.
func MinimalCapabilities() Capabilities {
	return Capabilities{Keys: []EventCode{BTN_A}}
}

// Xbox360Capabilities declares the layout of a wired Xbox 360 pad so that
// games pick a sensible default mapping. Only BTN_A is ever driven; the other
// controls stay at their resting values.
func Xbox360Capabilities() Capabilities {
	stick := AbsInfo{Minimum: -32768, Maximum: 32767, Fuzz: 16, Flat: 128}
	trigger := AbsInfo{Minimum: 0, Maximum: 255}
	hat := AbsInfo{Minimum: -1, Maximum: 1}
	return Capabilities{
		Keys: []EventCode{
			BTN_A, BTN_B, BTN_X, BTN_Y,
			BTN_TL, BTN_TR,
			BTN_SELECT, BTN_START,
			BTN_MODE,
			BTN_THUMBL, BTN_THUMBR,
		},
		Axes: map[EventCode]AbsInfo{
			ABS_X:     stick,
			ABS_Y:     stick,
			ABS_RX:    stick,
			ABS_RY:    stick,
			ABS_Z:     trigger,
			ABS_RZ:    trigger,
			ABS_HAT0X: hat,
			ABS_HAT0Y: hat,
		},
	}
}

// ProfileCapabilities looks up a named capability profile.
func ProfileCapabilities(name string) (Capabilities, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileMinimal:
		return MinimalCapabilities(), nil
	case ProfileXbox360, "":
		return Xbox360Capabilities(), nil
	default:
		return Capabilities{}, fmt.Errorf("unknown capability profile %q", name)
	}
}

// HasKey reports whether code is among the declared keys.
func (c Capabilities) HasKey(code EventCode) bool {
	for _, k := range c.Keys {
		if k == code {
			return true
		}
	}
	return false
}

// sortedAxes returns the axis codes in ascending order so that setup ioctls
// are issued deterministically.
func (c Capabilities) sortedAxes() []EventCode {
	codes := make([]EventCode, 0, len(c.Axes))
	for code := range c.Axes {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
