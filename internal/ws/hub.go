package ws

import "sync"

// Hub tracks connected clients per room and fans published payloads out to
// them. Clients that cannot keep up are dropped rather than blocking the hub.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[chan []byte]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[chan []byte]struct{})}
}

// Register adds a client channel to a room and returns it.
func (h *Hub) Register(roomID string) chan []byte {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[roomID]
	if !ok {
		clients = make(map[chan []byte]struct{})
		h.rooms[roomID] = clients
	}
	clients[ch] = struct{}{}
	return ch
}

// Unregister removes a client channel from a room and closes it.
func (h *Hub) Unregister(roomID string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[roomID]
	if !ok {
		return
	}
	if _, member := clients[ch]; !member {
		return
	}
	delete(clients, ch)
	close(ch)
	if len(clients) == 0 {
		delete(h.rooms, roomID)
	}
}

// Broadcast delivers a payload to every client in the room.
func (h *Hub) Broadcast(roomID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.rooms[roomID] {
		select {
		case ch <- payload:
		default:
			// slow client; skip this frame
		}
	}
}

// ClientCount reports the number of connections in a room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
