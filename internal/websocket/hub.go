package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/daiyabarus/FAC/internal/infrastructure"
	"github.com/daiyabarus/FAC/pkg/contracts/events"
)

// Hub maintains the set of active clients and broadcasts run events to
// them. One hub serves the whole process.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	quit    chan struct{}
	running bool

	totalConnections  int64
	activeConnections int64
	messagesSent      int64
}

// NewHub creates a new Hub instance.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
	}
}

// Start starts the hub's main loop.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.totalConnections++
			h.activeConnections = int64(len(h.clients))
			h.mu.Unlock()
			h.logger.Info("client registered", slog.Int("clients", int(h.activeConnections)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.activeConnections = int64(len(h.clients))
			h.mu.Unlock()
			h.logger.Info("client unregistered", slog.Int("clients", int(h.activeConnections)))

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.messagesSent++
				default:
					// Slow consumer; drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts down the hub.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.quit)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts one run event to every connected client.
func (h *Hub) Publish(event events.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
		return
	}

	select {
	case h.broadcast <- payload:
	case <-time.After(time.Second):
		h.logger.Warn("broadcast queue full, event dropped",
			slog.String("type", string(event.Type)),
		)
	}
}
