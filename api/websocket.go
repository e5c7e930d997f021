package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"gamepad-bridge/driver"
	"gamepad-bridge/logger"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// commandTimeout bounds how long a single command may wait on the bridge.
const commandTimeout = 5 * time.Second

// WebRequest is a command sent by a client.
type WebRequest struct {
	Command string `json:"command"` // "START", "STOP", "SIMULATE", "STATUS"
	Port    string `json:"port,omitempty"`
}

// WebResponse is a reply to a command or a pushed notification.
type WebResponse struct {
	Status  string      `json:"status"` // "success", "warning", "error", "notify"
	Command string      `json:"command,omitempty"`
	Message string      `json:"message"`
	Hint    string      `json:"hint,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Controller is the part of *driver.Bridge the API drives.
type Controller interface {
	Start(ctx context.Context, port string) error
	Stop(ctx context.Context) error
	Simulate(ctx context.Context) error
	Status() driver.StatusInfo
}

// client serializes writes to one websocket connection.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(resp WebResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(commandTimeout))
	return c.conn.WriteJSON(resp)
}

// Handler serves the websocket control API.
type Handler struct {
	Bridge      Controller
	DefaultPort string

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHandler creates a handler; START without a port uses defaultPort.
func NewHandler(bridge Controller, defaultPort string) *Handler {
	return &Handler{
		Bridge:      bridge,
		DefaultPort: defaultPort,
		clients:     make(map[*client]struct{}),
	}
}

// Broadcast forwards every notification to all connected clients until notes
// is closed or ctx ends.
func (h *Handler) Broadcast(ctx context.Context, notes <-chan driver.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notes:
			if !ok {
				return
			}
			resp := WebResponse{Status: "notify", Message: n.Message, Hint: n.Hint, Data: n}
			for _, c := range h.snapshot() {
				if err := c.send(resp); err != nil {
					logger.Debug("Dropping websocket client: %v", err)
					h.remove(c)
					c.conn.Close()
				}
			}
		}
	}
}

func (h *Handler) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *Handler) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// ServeWS upgrades the connection and handles commands until it closes.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}
	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.remove(c)
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var req WebRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.send(WebResponse{Status: "error", Message: "Invalid JSON"})
			continue
		}

		go h.handleRequest(r.Context(), c, req)
	}
}

func (h *Handler) handleRequest(ctx context.Context, c *client, req WebRequest) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := strings.ToUpper(strings.TrimSpace(req.Command))
	var err error
	switch cmd {
	case "START":
		port := req.Port
		if port == "" {
			port = h.DefaultPort
		}
		err = h.Bridge.Start(ctx, port)
	case "STOP":
		err = h.Bridge.Stop(ctx)
	case "SIMULATE":
		err = h.Bridge.Simulate(ctx)
	case "STATUS":
	default:
		c.send(WebResponse{Status: "error", Command: req.Command, Message: "Unknown Command"})
		return
	}

	status := h.Bridge.Status()
	if err != nil {
		resp := WebResponse{Status: "error", Command: cmd, Message: err.Error(), Data: status}
		if driver.IsKind(err, driver.ConnectionFailed) {
			resp.Status = "warning"
		}
		var be *driver.BridgeError
		if errors.As(err, &be) {
			resp.Hint = be.Hint()
		}
		c.send(resp)
		return
	}
	c.send(WebResponse{Status: "success", Command: cmd, Message: status.Message, Data: status})
}
