// Package protocol decodes the line protocol spoken by the GamePad sniffer
// firmware: one ASCII token per newline-terminated line.
package protocol

import (
	"bytes"
	"errors"
	"unicode/utf8"
)

// Tokens understood by the bridge.
const (
	TokenButtonADown = "BTN_A_DOWN"
	TokenButtonAUp   = "BTN_A_UP"
)

// ErrInvalidEncoding is returned for lines that are not valid UTF-8.
var ErrInvalidEncoding = errors.New("line is not valid UTF-8")

// Command is a decoded token.
type Command int

const (
	// CommandNone is any token the bridge does not act on.
	CommandNone Command = iota
	CommandButtonADown
	CommandButtonAUp
)

func (c Command) String() string {
	switch c {
	case CommandButtonADown:
		return TokenButtonADown
	case CommandButtonAUp:
		return TokenButtonAUp
	default:
		return "NONE"
	}
}

// Pressed reports the button state carried by c. It is meaningless for
// CommandNone.
func (c Command) Pressed() bool {
	return c == CommandButtonADown
}

// Decode turns a raw line into a Command. Surrounding whitespace is ignored
// and unknown tokens decode to CommandNone without error; only a line that is
// not UTF-8 is an error.
func Decode(line []byte) (Command, error) {
	if !utf8.Valid(line) {
		return CommandNone, ErrInvalidEncoding
	}
	switch string(bytes.TrimSpace(line)) {
	case TokenButtonADown:
		return CommandButtonADown, nil
	case TokenButtonAUp:
		return CommandButtonAUp, nil
	}
	return CommandNone, nil
}

// Encode returns the wire form of c including the trailing newline. It
// returns nil for CommandNone.
func Encode(c Command) []byte {
	if c == CommandNone {
		return nil
	}
	return []byte(c.String() + "\n")
}
