package driver

import (
	"fmt"
	"strings"
	"time"

	"gamepad-bridge/logger"

	"go.bug.st/serial"
)

// readSlice is how long a single Read waits for data before reporting that
// none is available. It keeps the decoder responsive to stop requests.
const readSlice = 10 * time.Millisecond

// SerialPort wraps go.bug.st/serial for the USB-UART link to the sniffer.
type SerialPort struct {
	serial.Port
	portName string
}

var _ Port = (*SerialPort)(nil)

func openSerialPort(portName string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(readSlice); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}

	logger.Info("Serial port %s opened at %d bps (8N1)", portName, baudRate)
	return &SerialPort{Port: port, portName: portName}, nil
}

func (p *SerialPort) PortName() string {
	return p.portName
}

// OpenPort opens either a physical serial port or, for names of the form
// "tcp://host:port", a TCP stream carrying the same protocol.
func OpenPort(portName string, baudRate int) (Port, error) {
	if strings.HasPrefix(portName, "tcp://") {
		return openTCPPort(strings.TrimPrefix(portName, "tcp://"))
	}
	return openSerialPort(portName, baudRate)
}
