package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub fans ingested access events out to connected dashboard clients.
// Readers are never connected here; the device side stays poll-based.
type Hub struct {
	// Registered dashboard clients keyed by connection ID
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Outbound messages for all clients
	broadcast chan []byte

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("🌐 Dashboard client connected: %s", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				close(client.send)
				log.Printf("🌐 Dashboard client disconnected: %s", client.ID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full or client dead, let the pumps clean up
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast wraps a payload in an event envelope and queues it for every
// connected client. Satisfies the ingestor's broadcaster interface.
func (h *Hub) Broadcast(event string, payload interface{}) {
	msg, err := json.Marshal(map[string]interface{}{
		"type":    event,
		"payload": payload,
	})
	if err != nil {
		log.Printf("Error marshaling broadcast message: %v", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		log.Printf("⚠️ Broadcast queue full, dropping %s event", event)
	}
}

// ClientCount reports how many dashboard clients are connected
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
