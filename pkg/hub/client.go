package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Connection timing. Pings go out often enough that a healthy peer always
// answers before its read deadline passes.
const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = pongTimeout * 9 / 10
	maxInboundSize = 4 << 10 // peers only send control frames
	sendBuffer     = 256
)

// Conn is the subset of a websocket connection the hub needs. Both the
// fiber and gorilla connection types satisfy it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one connected peer. Only writeLoop writes to conn.
type Client struct {
	hub  *Hub
	conn Conn
	send chan Message
}

func newClient(h *Hub, conn Conn) *Client {
	return &Client{hub: h, conn: conn, send: make(chan Message, sendBuffer)}
}

func (c *Client) run() {
	go c.writeLoop()
	c.readLoop()
}

// readLoop discards inbound data and returns when the peer goes away, at
// which point the client is unregistered.
func (c *Client) readLoop() {
	defer c.leave()

	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(pongTimeout)) }
	c.conn.SetReadLimit(maxInboundSize)
	if err := extend(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) leave() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
}

// writeLoop drains send and keeps the connection alive with pings. A closed
// send channel means the hub dropped this client.
func (c *Client) writeLoop() {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	defer c.conn.Close()

	for {
		var err error
		select {
		case msg, open := <-c.send:
			if !open {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			err = c.write(msg.Type.wire(), msg.Data)
		case <-ping.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, data)
}
