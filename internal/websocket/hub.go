package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message is a live update. Entity changes and new activities are broadcast
// to every user; notification changes go only to their recipient.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
	Data   any            `json:"data,omitempty"`
}

// NewMessage builds a message typed "<entity>_<action>".
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// WithData attaches the changed record.
func (m Message) WithData(v any) Message {
	m.Data = v
	return m
}

// Hub tracks open connections grouped by user.
type Hub struct {
	mu     sync.RWMutex
	users  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		users:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.users[c.userID]
	if conns == nil {
		conns = make(map[*Client]struct{})
		h.users[c.userID] = conns
	}
	conns[c] = struct{}{}
}

// Unregister removes c and closes its send channel. It is safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.users[c.userID]
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.users, c.userID)
	}
}

// Broadcast sends msg to every connection subscribed to its entity.
func (h *Hub) Broadcast(msg Message) {
	data, ok := h.encode(msg)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.users {
		for c := range conns {
			if c.wants(msg.Entity) {
				h.enqueue(c, data, msg.Type)
			}
		}
	}
}

// SendToUser sends msg to every connection of one user.
func (h *Hub) SendToUser(userID int64, msg Message) {
	data, ok := h.encode(msg)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		h.enqueue(c, data, msg.Type)
	}
}

func (h *Hub) encode(msg Message) ([]byte, bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal websocket message", "error", err, "type", msg.Type)
		return nil, false
	}
	return data, true
}

// enqueue never blocks; a slow client loses the message.
func (h *Hub) enqueue(c *Client, data []byte, msgType string) {
	select {
	case c.send <- data:
	default:
		h.logger.Debug("websocket message dropped", "user_id", c.userID, "type", msgType)
	}
}

// ClientCount returns the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.users {
		n += len(conns)
	}
	return n
}
