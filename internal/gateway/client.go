package gateway

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

// sendTimeout bounds how long the hub waits on a stuck client before
// evicting it, per-message.
const sendTimeout = 5 * time.Second

// Client represents a single downstream WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// deliver attempts a bounded-time send to the client's queue. A client
// that cannot drain its queue within sendTimeout is evicted rather than
// allowed to stall the broadcast loop for everyone else.
func (c *Client) deliver(envelope []byte) {
	select {
	case c.send <- envelope:
	case <-time.After(sendTimeout):
		slog.Warn("gateway: evicting stuck client")
		// broadcast holds the hub's read lock here; remove needs the write
		// lock, so it runs once the broadcast has released it.
		go c.hub.remove(c)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		slog.Info("gateway: client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
