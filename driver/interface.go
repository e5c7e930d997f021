package driver

import "io"

// Port is a byte stream from the GamePad sniffer. Read returns 0, nil when no
// data arrived within the port's short read timeout.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}
