package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	maxClientFrame = 4 << 10
)

// Client is one open connection of a signed-in user.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	userID int64
	send   chan []byte

	mu      sync.RWMutex
	filters map[string]bool
}

func NewClient(hub *Hub, conn *ws.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// clientFrame is the only message a client sends: it narrows broadcasts to
// the listed entities. An empty list restores the full stream.
type clientFrame struct {
	Type     string   `json:"type"`
	Entities []string `json:"entities"`
}

// wants reports whether a broadcast about entity should reach the client.
// Messages addressed to the user are never filtered.
func (c *Client) wants(entity string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.filters) == 0 || c.filters[entity]
}

func (c *Client) subscribe(entities []string) {
	filters := make(map[string]bool, len(entities))
	for _, e := range entities {
		filters[e] = true
	}
	c.mu.Lock()
	c.filters = filters
	c.mu.Unlock()
}

// Run blocks until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.conn.SetReadLimit(maxClientFrame)
	go c.writeLoop(ctx)
	c.readLoop(ctx)
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var f clientFrame
		if json.Unmarshal(data, &f) != nil || f.Type != "subscribe" {
			continue
		}
		c.subscribe(f.Entities)
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
