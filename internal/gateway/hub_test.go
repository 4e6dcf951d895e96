package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"indexpulse/internal/bus"
	"indexpulse/internal/model"
)

func TestHub_BroadcastsPublishedCandleToConnectedClient(t *testing.T) {
	b := bus.New(100)
	hub := NewHub(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitForClientCount(t, hub, 1)

	candle := model.Candle{Symbol: "R_100", OpenTime: 100, Open: 1, High: 2, Low: 0.5, Close: 1.5}
	b.Publish("candle", candle)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var envelope struct {
		Topic string       `json:"topic"`
		Data  model.Candle `json:"data"`
		Seq   int64        `json:"seq"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Topic != "candle" {
		t.Errorf("expected topic 'candle', got %q", envelope.Topic)
	}
	if envelope.Data.Symbol != "R_100" || envelope.Data.Close != 1.5 {
		t.Errorf("unexpected candle payload: %+v", envelope.Data)
	}
	if envelope.Seq != 1 {
		t.Errorf("expected first envelope to have seq 1, got %d", envelope.Seq)
	}
}

func TestHub_RemoveIsIdempotent(t *testing.T) {
	hub := NewHub(bus.New(10))
	c := &Client{send: make(chan []byte, 1)}
	hub.clients[c] = true

	hub.remove(c)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after remove, got %d", hub.ClientCount())
	}

	// A second remove of the same client must not panic on a
	// double-close of the send channel.
	hub.remove(c)
}

func waitForClientCount(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for client count %d, got %d", n, hub.ClientCount())
}
