package ws

import "sync"

// Hub tracks the viewer room of every lot with at least one open stream.
// Rooms exist only while watched: the last Leave retires the room, so lots
// nobody views hold no memory.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub() *Hub { return &Hub{rooms: map[string]*room{}} }

func (h *Hub) Join(lotID string, s subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[lotID]
	if r == nil {
		r = newRoom()
		h.rooms[lotID] = r
	}
	r.add(s)
}

func (h *Hub) Leave(lotID string, s subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.rooms[lotID]
	if r == nil {
		return
	}
	if r.drop(s) == 0 {
		delete(h.rooms, lotID)
	}
}

// Broadcast is called by the Redis subscriber loop.
func (h *Hub) Broadcast(lotID string, msg []byte) {
	h.mu.Lock()
	r := h.rooms[lotID]
	h.mu.Unlock()
	if r != nil {
		r.broadcast(msg)
	}
}
