package uinput

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// EventWriter encodes input_event structs onto w.
type EventWriter struct {
	w       io.Writer
	nowFunc func() time.Time
}

// NewEventWriter returns an EventWriter writing to w.
func NewEventWriter(w io.Writer) *EventWriter {
	return &EventWriter{w: w, nowFunc: time.Now}
}

// input_event with a 32-bit timeval.
type event32 struct {
	Sec, Usec  int32
	Type, Code uint16
	Val        int32
}

// input_event with a 64-bit timeval.
type event64 struct {
	Tv         unix.Timeval
	Type, Code uint16
	Val        int32
}

// Event writes a single input event.
func (ew *EventWriter) Event(et EventType, ec EventCode, val int32) error {
	tv := unix.NsecToTimeval(ew.nowFunc().UnixNano())

	var ev any
	switch size := unsafe.Sizeof(int(0)); size {
	case 4:
		ev = &event32{int32(tv.Sec), int32(tv.Usec), uint16(et), uint16(ec), val}
	case 8:
		ev = &event64{tv, uint16(et), uint16(ec), val}
	default:
		return fmt.Errorf("unexpected int size of %d byte(s)", size)
	}
	return binary.Write(ew.w, binary.LittleEndian, ev)
}

// Sync writes EV_SYN/SYN_REPORT, closing the current packet of events.
func (ew *EventWriter) Sync() error {
	return ew.Event(EV_SYN, SYN_REPORT, 0)
}
