package uinput

// EventType is an input event type (EV_*).
type EventType uint16

// EventCode is an input event code within a type (KEY_*, BTN_*, ABS_*, SYN_*).
type EventCode uint16

// Values from include/uapi/linux/input-event-codes.h.
const (
	EV_SYN EventType = 0x00
	EV_KEY EventType = 0x01
	EV_ABS EventType = 0x03
)

const (
	SYN_REPORT EventCode = 0x00

	BTN_A      EventCode = 0x130
	BTN_B      EventCode = 0x131
	BTN_X      EventCode = 0x133
	BTN_Y      EventCode = 0x134
	BTN_TL     EventCode = 0x136
	BTN_TR     EventCode = 0x137
	BTN_SELECT EventCode = 0x13a
	BTN_START  EventCode = 0x13b
	BTN_MODE   EventCode = 0x13c
	BTN_THUMBL EventCode = 0x13d
	BTN_THUMBR EventCode = 0x13e

	ABS_X     EventCode = 0x00
	ABS_Y     EventCode = 0x01
	ABS_Z     EventCode = 0x02
	ABS_RX    EventCode = 0x03
	ABS_RY    EventCode = 0x04
	ABS_RZ    EventCode = 0x05
	ABS_HAT0X EventCode = 0x10
	ABS_HAT0Y EventCode = 0x11
)

// BUS_USB from include/uapi/linux/input.h.
const BUS_USB uint16 = 0x03
