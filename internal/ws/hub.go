package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// frame is the wire envelope for every event in both directions.
type frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Client is one live connection. Writes are serialized through the mutex
// because gorilla/websocket allows at most one concurrent writer.
type Client struct {
	UserID    string
	Username  string
	SessionID string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(userID, username, sessionID string, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, Username: username, SessionID: sessionID, conn: conn}
}

// Send writes an enveloped event to the connection.
func (c *Client) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(frame{Event: event, Data: payload})
}

// Close closes the underlying connection, unblocking its read loop.
func (c *Client) Close() {
	c.conn.Close()
}

// Hub is the registry of live connections, at most one per user. A new
// connection for an already connected user supersedes the old one.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Client)}
}

// Register stores the client as the user's single live connection and returns
// the superseded client, if any. The superseded connection is not closed here;
// its own disconnect path finds the registry already pointing elsewhere.
func (h *Hub) Register(c *Client) *Client {
	h.mu.Lock()
	prev := h.conns[c.UserID]
	h.conns[c.UserID] = c
	h.mu.Unlock()
	if prev == c {
		return nil
	}
	return prev
}

// Unregister removes the user's entry only if it still points at this exact
// client. Reports whether the entry was removed, so a disconnect that raced
// with a reconnect does not tear down the newer session.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.UserID] != c {
		return false
	}
	delete(h.conns, c.UserID)
	return true
}

// Lookup returns the user's live connection, or nil.
func (h *Hub) Lookup(userID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[userID]
}

// Push delivers an event to the user's live connection if one exists.
// Reports whether a connection accepted the write. A failed write closes the
// connection; its read loop handles the cleanup.
func (h *Hub) Push(userID, event string, payload any) bool {
	c := h.Lookup(userID)
	if c == nil {
		return false
	}
	if err := c.Send(event, payload); err != nil {
		c.Close()
		return false
	}
	return true
}

// Broadcast sends an event to every live connection.
func (h *Hub) Broadcast(event string, payload any) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.Send(event, payload); err != nil {
			c.Close()
		}
	}
}
