package ws

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeDeadline = 10 * time.Second
	pingInterval  = 25 * time.Second
	sendBuffer    = 8
)

// Client owns the write side of one socket. Everything that goes out
// passes through the send channel so only WritePump touches the conn.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues a frame, dropping it if the client cannot keep up. The
// next summary push carries the full view anyway.
func (c *Client) Send(b []byte) {
	select {
	case c.send <- b:
	case <-c.done:
	default:
	}
}

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case b := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
