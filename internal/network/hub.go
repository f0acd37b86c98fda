package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/staryears/sleepplus/internal/platform/logger"
	"github.com/staryears/sleepplus/internal/platform/metrics"
)

// broadcastBuffer bounds how many chat lines may wait for the hub loop.
const broadcastBuffer = 256

// OutgoingMessage is pushed to every connected client.
type OutgoingMessage struct {
	Type      string    `json:"type"` // "broadcast"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	// done is closed when Run returns.
	done       chan struct{}
	mu         sync.Mutex
	actions    PlayerActions
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub driving actions.
func NewHub(actions PlayerActions, log *logger.Logger, m *metrics.Collector) *Hub {
	if m == nil {
		m = metrics.New()
	}
	return &Hub{
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		actions:    actions,
		logger:     log,
		metrics:    m,
	}
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					h.metrics.RecordWSMessage(false)
				default:
					close(client.send)
					delete(h.clients, client)
					h.metrics.RecordWSConnection(-1)
					h.metrics.RecordWSError()
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastText sends a chat line to every client. It never blocks: when the
// hub is behind, the line is dropped and logged.
func (h *Hub) BroadcastText(text string) {
	payload, err := json.Marshal(OutgoingMessage{Type: "broadcast", Text: text, Timestamp: time.Now()})
	if err != nil {
		h.logger.Errorf("Failed to serialize broadcast: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.metrics.RecordWSError()
		h.logger.Warn("Broadcast queue full, dropping: " + text)
	}
}
