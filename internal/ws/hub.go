package ws

import (
	"sync"

	"rummy-service/pkg/logger"

	"go.uber.org/zap"
)

// Outgoing is the wire envelope for every server->client frame, both
// request acks and room broadcasts.
type Outgoing struct {
	Event     string      `json:"event"`
	RequestID string      `json:"requestId,omitempty"`
	Code      int         `json:"code"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// Hub routes engine events to live connections. It implements the
// engine's Emitter: table broadcasts fan out to the room, private
// events go to the single connection bound to the user.
type Hub struct {
	mu     sync.RWMutex
	byConn map[string]*client
	byUser map[int64]*client
	rooms  map[string]map[string]*client
}

func NewHub() *Hub {
	return &Hub{
		byConn: make(map[string]*client),
		byUser: make(map[int64]*client),
		rooms:  make(map[string]map[string]*client),
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	prev := h.byUser[c.userID]
	h.byConn[c.id] = c
	h.byUser[c.userID] = c
	h.mu.Unlock()

	// one live connection per user; a newer one evicts the older
	if prev != nil && prev.id != c.id {
		prev.shutdown()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.byConn, c.id)
	if current, ok := h.byUser[c.userID]; ok && current.id == c.id {
		delete(h.byUser, c.userID)
	}
	for tableID, room := range h.rooms {
		if _, ok := room[c.id]; ok {
			delete(room, c.id)
			if len(room) == 0 {
				delete(h.rooms, tableID)
			}
		}
	}
	h.mu.Unlock()
}

func (h *Hub) join(c *client, tableID string) {
	h.mu.Lock()
	room, ok := h.rooms[tableID]
	if !ok {
		room = make(map[string]*client)
		h.rooms[tableID] = room
	}
	room[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) leave(c *client, tableID string) {
	h.mu.Lock()
	if room, ok := h.rooms[tableID]; ok {
		delete(room, c.id)
		if len(room) == 0 {
			delete(h.rooms, tableID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) ToTable(tableID string, event string, data interface{}) {
	msg := Outgoing{Event: event, Code: 200, Data: data}

	h.mu.RLock()
	room := h.rooms[tableID]
	targets := make([]*client, 0, len(room))
	for _, c := range room {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(msg)
	}
}

func (h *Hub) ToUser(userID int64, event string, data interface{}) {
	h.mu.RLock()
	c, ok := h.byUser[userID]
	h.mu.RUnlock()
	if !ok {
		logger.Log.Debug("drop private event, user offline",
			zap.Int64("userID", userID),
			zap.String("event", event),
		)
		return
	}
	c.enqueue(Outgoing{Event: event, Code: 200, Data: data})
}
