package ws

import (
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

// Client wraps a websocket connection. Writes are serialized: the hub
// broadcast loop and the per-connection reply path both go through Send.
type Client struct {
	mu           sync.Mutex
	conn         *websocket.Conn
	log          *slog.Logger
	writeTimeout time.Duration
}

// NewClient constructs a client wrapper.
func NewClient(conn *websocket.Conn, logger *slog.Logger, writeTimeout time.Duration) *Client {
	return &Client{conn: conn, log: logger, writeTimeout: writeTimeout}
}

// Send writes a text message to the websocket connection.
func (c *Client) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("websocket send failed", "error", err)
		_ = c.conn.Close()
		return err
	}
	return nil
}

// Read blocks for the next inbound text message.
func (c *Client) Read() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close terminates the connection.
func (c *Client) Close() {
	_ = c.conn.Close()
}
