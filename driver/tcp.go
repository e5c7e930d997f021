package driver

import (
	"errors"
	"fmt"
	"net"
	"time"

	"gamepad-bridge/logger"
)

// TCPPort wraps a TCP connection as a Port, for serial-over-TCP adapters and
// the mock microcontroller.
type TCPPort struct {
	conn    net.Conn
	address string
}

var _ Port = (*TCPPort)(nil)

func openTCPPort(address string) (Port, error) {
	conn, err := net.DialTimeout("tcp", address, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	logger.Info("Connected to %s (TCP)", address)
	return &TCPPort{conn: conn, address: address}, nil
}

func (t *TCPPort) Read(p []byte) (int, error) {
	t.conn.SetReadDeadline(time.Now().Add(readSlice))
	n, err := t.conn.Read(p)

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return n, nil
	}
	return n, err
}

func (t *TCPPort) Write(p []byte) (int, error) {
	return t.conn.Write(p)
}

func (t *TCPPort) Close() error {
	return t.conn.Close()
}

// ResetInputBuffer drains whatever the peer already sent.
func (t *TCPPort) ResetInputBuffer() error {
	buf := make([]byte, 1024)
	t.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
	for {
		n, _ := t.conn.Read(buf)
		if n == 0 {
			break
		}
	}
	return nil
}

func (t *TCPPort) Address() string {
	return t.address
}
