package ws

import (
	"sync"
)

// Hub keeps watcher connection sets per lotID.
type Hub struct {
	rooms sync.Map // lotID -> *room
}

func NewHub() *Hub { return &Hub{} }

// Broadcast is called by the Redis subscriber.
func (h *Hub) Broadcast(lotID string, msg []byte) {
	if v, ok := h.rooms.Load(lotID); ok {
		v.(*room).broadcast(msg)
	}
}

func (h *Hub) Join(lotID string, c *clientConn) {
	r, _ := h.rooms.LoadOrStore(lotID, newRoom())
	r.(*room).add(c)
}

func (h *Hub) Leave(lotID string, c *clientConn) {
	if v, ok := h.rooms.Load(lotID); ok {
		v.(*room).remove(c)
	}
}
