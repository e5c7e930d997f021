package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gamepad-bridge/uinput"
)

// recordingSink is an EventSink that records events in a readable form.
type recordingSink struct {
	mu       sync.Mutex
	events   []string
	closed   int
	writeErr error
}

func (s *recordingSink) Event(et uinput.EventType, ec uinput.EventCode, val int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if et != uinput.EV_KEY {
		s.events = append(s.events, fmt.Sprintf("event(%d,%d,%d)", et, ec, val))
		return nil
	}
	name := fmt.Sprintf("%#x", ec)
	if ec == uinput.BTN_A {
		name = "A"
	}
	if val == 1 {
		s.events = append(s.events, "press("+name+")")
	} else {
		s.events = append(s.events, "release("+name+")")
	}
	return nil
}

func (s *recordingSink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.events = append(s.events, "sync")
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

func (s *recordingSink) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// testBridge wires a Bridge to a recording sink and a MockPort and runs Serve
// until the test ends.
type testBridge struct {
	*Bridge
	sink      *recordingSink
	port      *MockPort
	opened    []string
	openedMu  sync.Mutex
	createErr error
	openErr   error

	// openPort, when set, is returned by OpenPort instead of port.
	openPort    Port
	stopTimeout time.Duration
}

func newTestBridge(t *testing.T, configure func(tb *testBridge)) *testBridge {
	t.Helper()
	tb := &testBridge{sink: &recordingSink{}, port: NewMockPort()}
	if configure != nil {
		configure(tb)
	}
	tb.Bridge = NewBridge(Options{
		Device:       DeviceConfig{Name: "test pad", Capabilities: uinput.MinimalCapabilities()},
		Hold:         20 * time.Millisecond,
		StopTimeout:  tb.stopTimeout,
		CreateDevice: func(DeviceConfig) (EventSink, error) {
			if tb.createErr != nil {
				return nil, tb.createErr
			}
			return tb.sink, nil
		},
		OpenPort: func(name string, baud int) (Port, error) {
			tb.openedMu.Lock()
			tb.opened = append(tb.opened, name)
			tb.openedMu.Unlock()
			if tb.openErr != nil {
				return nil, tb.openErr
			}
			if tb.openPort != nil {
				return tb.openPort, nil
			}
			return tb.port, nil
		},
		ListPorts: func() ([]string, error) {
			return []string{"/dev/ttyS0", "/dev/ttyUSB1"}, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		tb.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-served
	})
	return tb
}

func (tb *testBridge) Opened() []string {
	tb.openedMu.Lock()
	defer tb.openedMu.Unlock()
	return append([]string(nil), tb.opened...)
}

// drain collects queued notifications without blocking.
func drain(b *Bridge) []Notification {
	var out []Notification
	for {
		select {
		case n := <-b.Notifications():
			out = append(out, n)
		default:
			return out
		}
	}
}

func countKind(notes []Notification, k Kind) int {
	n := 0
	for _, note := range notes {
		if note.Kind == k {
			n++
		}
	}
	return n
}

var errUnplugged = errors.New("device disconnected")

// stuckPort is a Port whose Read blocks until Close, like a driver that
// ignores its read timeout.
type stuckPort struct {
	mu     sync.Mutex
	closes int
	done   chan struct{}
}

func newStuckPort() *stuckPort { return &stuckPort{done: make(chan struct{})} }

func (p *stuckPort) Read(b []byte) (int, error) {
	<-p.done
	return 0, errors.New("port closed")
}

func (p *stuckPort) Write(b []byte) (int, error) { return len(b), nil }

func (p *stuckPort) ResetInputBuffer() error { return nil }

func (p *stuckPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	if p.closes == 1 {
		close(p.done)
	}
	return nil
}

func (p *stuckPort) Closes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closes
}
