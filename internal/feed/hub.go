package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/tlemoine/signalmap/internal/features/reports"
)

// Message is what the hub pushes to view clients on every mirror update.
type Message struct {
	Type      string           `json:"type"` // "reports" or "notice"
	Reports   []reports.Report `json:"reports,omitempty"`
	Notice    string           `json:"notice,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Hub fans mirror updates out to connected view clients over websockets.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	mu      sync.RWMutex
	clients map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*Client]bool),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			log.WithField("clients", n).Debug("feed client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			log.WithField("clients", n).Debug("feed client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Pump consumes mirror updates until the channel closes. Feed errors
// become toast-level notices; the report set the clients hold stays as it
// was.
func (h *Hub) Pump(updates <-chan reports.Update) {
	for u := range updates {
		msg := Message{Timestamp: time.Now()}
		if u.Err != nil {
			msg.Type = "notice"
			msg.Notice = "Live feed interrupted, showing last known reports"
		} else {
			msg.Type = "reports"
			msg.Reports = u.Reports
		}
		h.Broadcast(msg)
	}
}

func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.WithError(err).Error("failed to marshal feed message")
		return
	}
	h.broadcast <- data
}

// ClientCount returns the number of connected view clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
