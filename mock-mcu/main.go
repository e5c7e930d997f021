// mock-mcu stands in for the sniffer microcontroller. It listens on TCP and
// writes the firmware's boot chatter followed by A press/release lines, so
// the bridge can be run with --port tcp://localhost:9999.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"gamepad-bridge/protocol"

	"github.com/spf13/pflag"
)

var bootChatter = []string{
	"--- Wii U Dongle Booting (Smart Hunter Mode) ---",
	"WPS PIN Generated: 12345670",
	"--- Smart Hunter AP Started ---",
	"[!!!] DEVICE CONNECTED [!!!]",
	"=> ASSOCIATION SUCCESSFUL! HANDSHAKE INITIATED!",
}

type options struct {
	addr     string
	interval time.Duration
	hold     time.Duration
	split    bool
	chatter  bool
}

func main() {
	var o options
	pflag.StringVar(&o.addr, "addr", ":9999", "Listen address")
	pflag.DurationVar(&o.interval, "interval", time.Second, "Time between presses")
	pflag.DurationVar(&o.hold, "hold", 100*time.Millisecond, "Time between BTN_A_DOWN and BTN_A_UP")
	pflag.BoolVar(&o.split, "split", false, "Write each line in two pieces")
	pflag.BoolVar(&o.chatter, "chatter", true, "Send firmware boot messages first")
	pflag.Parse()

	listener, err := net.Listen("tcp", o.addr)
	if err != nil {
		fmt.Println("Failed to start mock microcontroller:", err)
		os.Exit(1)
	}
	defer listener.Close()

	fmt.Println("=== Mock Sniffer Microcontroller ===")
	fmt.Println("Listening on TCP", o.addr)
	fmt.Println("Waiting for connections...")

	for {
		conn, err := listener.Accept()
		if err != nil {
			fmt.Println("Accept error:", err)
			continue
		}
		fmt.Println("[MockMCU] Client connected:", conn.RemoteAddr())
		go handleConnection(conn, o)
	}
}

func handleConnection(conn net.Conn, o options) {
	defer conn.Close()

	if o.chatter {
		for _, line := range bootChatter {
			if err := writeLine(conn, []byte(line+"\r\n"), o.split); err != nil {
				fmt.Println("[MockMCU] Connection closed")
				return
			}
		}
	}

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := writeLine(conn, protocol.Encode(protocol.CommandButtonADown), o.split); err != nil {
			fmt.Println("[MockMCU] Connection closed")
			return
		}
		fmt.Println("[MockMCU] A down")
		time.Sleep(o.hold)
		if err := writeLine(conn, protocol.Encode(protocol.CommandButtonAUp), o.split); err != nil {
			fmt.Println("[MockMCU] Connection closed")
			return
		}
		fmt.Println("[MockMCU] A up")
	}
}

// writeLine sends data, optionally in two writes to exercise reassembly on
// the bridge side.
func writeLine(conn net.Conn, data []byte, split bool) error {
	if !split || len(data) < 2 {
		_, err := conn.Write(data)
		return err
	}
	half := len(data) / 2
	if _, err := conn.Write(data[:half]); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)
	_, err := conn.Write(data[half:])
	return err
}
