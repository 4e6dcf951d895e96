// Package gateway broadcasts engine events to downstream WebSocket
// subscribers. It is the mirror image of the broker client: where
// broker pulls ticks in over a WebSocket, gateway pushes engine events
// out over one.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"indexpulse/internal/model"
)

// Topics broadcast to every connected client.
var Topics = []string{
	"tick", "candle", "tf_candle", "tf_indicators",
	"signal", "trade_opened", "trade_closed",
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans out bus events to connected WebSocket clients, subscribing
// once per topic and re-broadcasting to every registered client.
type Hub struct {
	bus     model.EventBus
	mu      sync.RWMutex
	seq     int64
	clients map[*Client]bool
}

// NewHub creates a Hub reading from bus.
func NewHub(bus model.EventBus) *Hub {
	return &Hub{bus: bus, clients: make(map[*Client]bool)}
}

// Run subscribes to every topic and broadcasts incoming events until
// ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	chans := make([]<-chan any, len(Topics))
	for i, topic := range Topics {
		chans[i] = h.bus.Subscribe(topic, "gateway:"+topic)
	}
	var wg sync.WaitGroup
	for i, topic := range Topics {
		wg.Add(1)
		go func(topic string, ch <-chan any) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-ch:
					if !ok {
						return
					}
					h.broadcast(topic, payload)
				}
			}
		}(topic, chans[i])
	}
	<-ctx.Done()
	wg.Wait()
}

func (h *Hub) broadcast(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("gateway: failed to marshal event", "topic", topic, "error", err)
		return
	}

	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	envelope, _ := json.Marshal(map[string]any{
		"topic": topic,
		"data":  json.RawMessage(data),
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"seq":   seq,
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		client.deliver(envelope)
	}
}

// ServeWS upgrades the HTTP request to a WebSocket connection and
// registers the resulting client with the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("gateway: ws upgrade failed", "error", err)
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, 256), hub: h}
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	slog.Info("gateway: client connected", "total", count)
	go client.writePump()
	go client.readPump()
}

// remove evicts a client, closing its send channel. Safe to call more
// than once.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
