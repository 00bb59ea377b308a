package plugins

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

// Event types
const (
	EventRate    = "rate"
	EventProgram = "program"
)

// ClockEvent is pushed to every connected event socket
type ClockEvent struct {
	ID        string    `json:"id"`
	Time      time.Time `json:"time"`
	Type      string    `json:"type"`
	Output    int       `json:"output"`
	Frequency uint32    `json:"frequency,omitempty"`
	Locked    bool      `json:"locked"`
	Error     string    `json:"error,omitempty"`
}

type eventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *eventHub) publish(ev ClockEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if err := c.WriteJSON(ev); err != nil {
			slog.Debug("Dropping event client", "error", err)
			c.Close()
			delete(h.clients, c)
		}
	}
}

// serve registers c and blocks until the client goes away
func (h *eventHub) serve(c *websocket.Conn) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.Close()
		delete(h.clients, c)
	}
}
