package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Lifecycle event names
const (
	EventSessionCreated = "session.created"
	EventTurnStarted    = "turn.started"
	EventTurnCompleted  = "turn.completed"
	EventTurnFailed     = "turn.failed"
)

// EventMessage is one server-initiated lifecycle event
type EventMessage struct {
	Type      string `json:"type"`
	Event     string `json:"event"`
	Seq       int64  `json:"seq"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

// Client is one connected websocket client
type Client struct {
	ID           string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time

	writeMu sync.Mutex
}

// Send writes one text message to the client. Gorilla connections do
// not allow concurrent writers, so writes are serialized per client.
func (c *Client) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}
