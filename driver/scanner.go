package driver

import (
	"errors"
	"runtime"
	"sort"
	"strings"

	"gamepad-bridge/logger"

	"go.bug.st/serial"
)

// AutoPort asks the bridge to pick the first plausible serial port.
const AutoPort = "auto"

// PortLister enumerates serial ports. serial.GetPortsList satisfies it.
type PortLister func() ([]string, error)

// DiscoverPorts returns the candidate ports for a USB-UART sniffer, USB
// adapters first.
func DiscoverPorts(list PortLister) ([]string, error) {
	if list == nil {
		list = serial.GetPortsList
	}
	ports, err := list()
	if err != nil {
		return nil, err
	}
	filtered := filterPorts(ports)
	logger.Debug("Found %d candidate ports: %v", len(filtered), filtered)
	return filtered, nil
}

// ResolvePort returns name unchanged unless it is AutoPort, in which case the
// first discovered candidate is returned.
func ResolvePort(name string, list PortLister) (string, error) {
	if name != AutoPort {
		return name, nil
	}
	ports, err := DiscoverPorts(list)
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("no candidate serial ports found")
	}
	return ports[0], nil
}

// filterPorts keeps USB serial adapters and drops duplicates and Bluetooth
// pseudo-ports.
func filterPorts(ports []string) []string {
	var filtered []string
	seen := make(map[string]bool)

	for _, port := range ports {
		if seen[port] {
			continue
		}
		seen[port] = true

		if runtime.GOOS == "windows" {
			if strings.HasPrefix(strings.ToUpper(port), "COM") {
				filtered = append(filtered, port)
			}
			continue
		}

		lower := strings.ToLower(port)
		if strings.Contains(lower, "bluetooth") {
			continue
		}
		if strings.Contains(lower, "ttyusb") ||
			strings.Contains(lower, "ttyacm") ||
			strings.Contains(lower, "usbserial") ||
			strings.Contains(lower, "cu.") ||
			strings.Contains(lower, "ttys") {
			filtered = append(filtered, port)
		}
	}

	// USB adapters before built-in UARTs.
	sort.SliceStable(filtered, func(i, j int) bool {
		return portRank(filtered[i]) < portRank(filtered[j])
	})
	return filtered
}

func portRank(port string) int {
	lower := strings.ToLower(port)
	switch {
	case strings.Contains(lower, "ttyusb"), strings.Contains(lower, "ttyacm"), strings.Contains(lower, "usbserial"):
		return 0
	default:
		return 1
	}
}
