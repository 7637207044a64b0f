package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds every push so a dead or slow channel never blocks the
// submitting flow.
const writeTimeout = 5 * time.Second

// frame is the outbound websocket envelope.
type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// channel adapts a websocket connection to presence.Channel. The mutex keeps
// the delivery engine and the reconciler from interleaving frames on the same
// connection.
type channel struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newChannel(conn *websocket.Conn) *channel {
	return &channel{conn: conn}
}

// Send writes one event frame to the connection.
func (c *channel) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(frame{Type: event, Payload: payload})
}

// Close closes the underlying connection.
func (c *channel) Close() error {
	return c.conn.Close()
}
