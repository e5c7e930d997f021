// Package tui is the terminal console for the bridge: a port field, a
// scrollable log pane fed by bridge notifications, and key bindings for
// start, stop and simulate.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gamepad-bridge/driver"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxLines       = 500
	commandTimeout = 5 * time.Second
	// title, status, input, help and the pane border
	chromeHeight = 8
)

// Controller is the part of the bridge the console drives.
type Controller interface {
	Start(ctx context.Context, port string) error
	Stop(ctx context.Context) error
	Simulate(ctx context.Context) error
	Status() driver.StatusInfo
}

type noteMsg driver.Notification

type notesClosedMsg struct{}

type resultMsg struct {
	op  string
	err error
}

// Model is the bubbletea model of the console.
type Model struct {
	ctrl     Controller
	notes    <-chan driver.Notification
	input    textinput.Model
	viewport viewport.Model
	lines    []string
	status   driver.StatusInfo
	width    int
	ready    bool
}

// New builds a console model. notes may be nil when nothing publishes.
func New(ctrl Controller, notes <-chan driver.Notification, defaultPort string) Model {
	in := textinput.New()
	in.Prompt = "Port: "
	in.Placeholder = "/dev/ttyUSB0, tcp://host:port or auto"
	in.SetValue(defaultPort)
	in.CharLimit = 128
	in.Focus()

	return Model{
		ctrl:     ctrl,
		notes:    notes,
		input:    in,
		viewport: viewport.New(80, 10),
		status:   ctrl.Status(),
	}
}

// Run starts the console on the alternate screen and blocks until it quits.
func Run(ctrl Controller, notes <-chan driver.Notification, defaultPort string) error {
	_, err := tea.NewProgram(New(ctrl, notes, defaultPort), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForNote(m.notes))
}

func waitForNote(ch <-chan driver.Notification) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return notesClosedMsg{}
		}
		return noteMsg(n)
	}
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return resultMsg{op: op, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = max(msg.Width-len(m.input.Prompt)-2, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if !m.input.Focused() {
				return m, tea.Quit
			}
		case "tab":
			if m.input.Focused() {
				m.input.Blur()
			} else {
				m.input.Focus()
			}
			return m, nil
		case "enter":
			port := strings.TrimSpace(m.input.Value())
			return m, m.run("start", func(ctx context.Context) error { return m.ctrl.Start(ctx, port) })
		case "ctrl+s":
			return m, m.run("stop", m.ctrl.Stop)
		case "ctrl+a":
			return m, m.run("simulate", m.ctrl.Simulate)
		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case noteMsg:
		n := driver.Notification(msg)
		if n.Status != nil {
			m.status = *n.Status
		}
		if n.Kind != driver.KindState {
			m.appendLine(formatNote(n))
		}
		return m, waitForNote(m.notes)

	case notesClosedMsg:
		m.notes = nil
		return m, nil

	case resultMsg:
		m.status = m.ctrl.Status()
		if msg.err != nil {
			m.appendLine(errorStyle.Render(fmt.Sprintf("%s: %v", msg.op, msg.err)))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

func formatNote(n driver.Notification) string {
	ts := n.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line := ts.Format("15:04:05") + " " + n.Message
	switch n.Kind {
	case driver.KindError:
		line = errorStyle.Render(line)
	case driver.KindWarning:
		line = warningStyle.Render(line)
	case driver.KindEvent:
		line = eventStyle.Render(line)
	}
	if n.Hint != "" {
		line += "\n" + helpStyle.Render("  hint: "+n.Hint)
	}
	return line
}

func (m Model) statusLine() string {
	badge := idleBadge.Render(m.status.State)
	if m.status.State == driver.StateRunning.String() {
		badge = runningBadge.Render(m.status.State)
	}
	parts := []string{badge, m.status.Message}
	if m.status.Port != "" {
		parts = append(parts, helpStyle.Render(m.status.Port))
	}
	if m.status.DeviceActive {
		parts = append(parts, helpStyle.Render("device active"))
	}
	if m.status.Events > 0 {
		parts = append(parts, helpStyle.Render(fmt.Sprintf("%d events", m.status.Events)))
	}
	return strings.Join(parts, " ")
}

func (m Model) View() string {
	help := "enter start • ctrl+s stop • ctrl+a simulate A • tab toggle input • q quit"
	pane := m.viewport.View()
	if m.ready {
		pane = paneStyle.Width(m.width - 2).Render(pane)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Wii U GamePad Bridge"),
		m.statusLine(),
		m.input.View(),
		pane,
		helpStyle.Render(help),
	)
}
