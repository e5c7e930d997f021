package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	"gamepad-bridge/driver"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeController struct {
	mu      sync.Mutex
	started []string
	stops   int
	sims    int
	simErr  error
	status  driver.StatusInfo
}

func (f *fakeController) Start(ctx context.Context, port string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, port)
	f.status = driver.StatusInfo{State: "RUNNING", Message: "Listening", Port: port, DeviceActive: true}
	return nil
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.status = driver.StatusInfo{State: "IDLE", Message: "Stopped"}
	return nil
}

func (f *fakeController) Simulate(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sims++
	return f.simErr
}

func (f *fakeController) Status() driver.StatusInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.State == "" {
		return driver.StatusInfo{State: "IDLE", Message: "Ready"}
	}
	return f.status
}

// press runs a key through Update and executes the returned command, feeding
// its message back in.
func press(t *testing.T, m Model, key tea.KeyMsg) Model {
	t.Helper()
	next, cmd := m.Update(key)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	next, _ = m.Update(cmd())
	return next.(Model)
}

func TestEnterStartsWithTypedPort(t *testing.T) {
	fc := &fakeController{}
	m := New(fc, nil, "/dev/ttyUSB0")
	m.input.SetValue("  tcp://localhost:9999 ")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if len(fc.started) != 1 || fc.started[0] != "tcp://localhost:9999" {
		t.Fatalf("started = %v", fc.started)
	}
	if m.status.State != "RUNNING" || m.status.Port != "tcp://localhost:9999" {
		t.Errorf("status = %+v", m.status)
	}
	if !strings.Contains(m.View(), "RUNNING") {
		t.Errorf("view does not show running state")
	}
}

func TestStopAndSimulateKeys(t *testing.T) {
	fc := &fakeController{}
	m := New(fc, nil, "/dev/ttyUSB0")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	if fc.sims != 1 || fc.stops != 1 {
		t.Fatalf("sims = %d, stops = %d", fc.sims, fc.stops)
	}
	if m.status.Message != "Stopped" {
		t.Errorf("status message = %q", m.status.Message)
	}
	// Ctrl+A must not reach the text input.
	if got := m.input.Value(); got != "/dev/ttyUSB0" {
		t.Errorf("input = %q", got)
	}
}

func TestCommandErrorIsLogged(t *testing.T) {
	fc := &fakeController{simErr: driver.ErrNoDevice}
	m := New(fc, nil, "")

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlA})

	if len(m.lines) != 1 || !strings.Contains(m.lines[0], driver.ErrNoDevice.Error()) {
		t.Errorf("lines = %q", m.lines)
	}
}

func TestNotificationsAppendAndRearm(t *testing.T) {
	notes := make(chan driver.Notification, 1)
	m := New(&fakeController{}, notes, "")

	notes <- driver.Notification{Kind: driver.KindEvent, Message: "Hardware: GamePad 'A' Pressed"}
	msg := waitForNote(notes)()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		t.Fatal("expected the notification wait to be re-armed")
	}
	if len(m.lines) != 1 || !strings.Contains(m.lines[0], "GamePad 'A' Pressed") {
		t.Errorf("lines = %q", m.lines)
	}

	status := driver.StatusInfo{State: "RUNNING", Message: "Listening"}
	next, _ = m.Update(noteMsg{Kind: driver.KindState, Status: &status})
	m = next.(Model)
	if len(m.lines) != 1 {
		t.Errorf("state notifications should not be logged, lines = %q", m.lines)
	}
	if m.status.Message != "Listening" {
		t.Errorf("status = %+v", m.status)
	}

	close(notes)
	if _, ok := waitForNote(notes)().(notesClosedMsg); !ok {
		t.Error("closed channel should yield notesClosedMsg")
	}
}

func TestHintIsRendered(t *testing.T) {
	line := formatNote(driver.Notification{
		Kind:    driver.KindError,
		Message: "Error creating virtual gamepad: permission denied",
		Hint:    "run with sudo",
	})
	if !strings.Contains(line, "hint: run with sudo") {
		t.Errorf("formatNote = %q", line)
	}
}

func TestQuitOnlyWhenInputBlurred(t *testing.T) {
	m := New(&fakeController{}, nil, "")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = next.(Model)
	if m.input.Value() != "q" {
		t.Errorf("input = %q", m.input.Value())
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit with input blurred")
	}
}

func TestLogIsBounded(t *testing.T) {
	m := New(&fakeController{}, nil, "")
	for i := 0; i < maxLines+20; i++ {
		m.appendLine("x")
	}
	if len(m.lines) != maxLines {
		t.Errorf("len(lines) = %d", len(m.lines))
	}
}
