// Package broker connects to the upstream tick-frame WebSocket feed and
// publishes decoded ticks onto the event bus. Reconnection uses
// exponential backoff with full jitter so a mass outage of subscribers
// does not resynchronize their retries against the server.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"indexpulse/internal/model"
)

// tickFrame mirrors the upstream wire format:
// {"tick":{"symbol":"...","epoch":1.0,"quote":100.5,"bid":100.4,"ask":100.6}}
type tickFrame struct {
	Tick struct {
		Symbol string   `json:"symbol"`
		Epoch  float64  `json:"epoch"`
		Quote  float64  `json:"quote"`
		Bid    *float64 `json:"bid"`
		Ask    *float64 `json:"ask"`
	} `json:"tick"`
}

type subscribeFrame struct {
	Ticks     string `json:"ticks"`
	Subscribe int    `json:"subscribe"`
}

// Publisher is the subset of the bus a Client needs. Matches
// model.EventBus's Publish method so the real bus satisfies it directly.
type Publisher interface {
	Publish(topic string, payload any)
}

// Config controls connection target, reconnect backoff, and heartbeat
// cadence.
type Config struct {
	URL              string
	Symbols          []string
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	HeartbeatEvery   time.Duration
	HandshakeTimeout time.Duration
}

// Stats holds the monitoring counters exposed for the control surface
// and metrics exporter.
type Stats struct {
	TicksReceived     atomic.Int64
	ReconnectAttempts atomic.Int64
	LastTickEpochMs   atomic.Int64
	Connected         atomic.Bool
	ConnectedSinceMs  atomic.Int64
}

// Client is a reconnecting WebSocket tick ingester. It is grounded on
// the upstream client's connect/read-loop/heartbeat-loop shape, adapted
// to the tick/subscribe frame format of this feed and given genuine
// backoff jitter.
type Client struct {
	cfg   Config
	bus   Publisher
	dial  *websocket.Dialer
	stats Stats

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a Client. bus receives every decoded tick on the "tick"
// topic.
func New(cfg Config, bus Publisher) *Client {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.HeartbeatEvery <= 0 {
		cfg.HeartbeatEvery = 20 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		bus:  bus,
		dial: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
	}
}

// Stats returns a snapshot of the monitoring counters.
func (c *Client) Stats() Stats {
	var s Stats
	s.TicksReceived.Store(c.stats.TicksReceived.Load())
	s.ReconnectAttempts.Store(c.stats.ReconnectAttempts.Load())
	s.LastTickEpochMs.Store(c.stats.LastTickEpochMs.Load())
	s.Connected.Store(c.stats.Connected.Load())
	s.ConnectedSinceMs.Store(c.stats.ConnectedSinceMs.Load())
	return s
}

// Run connects and reconnects until ctx is cancelled, publishing every
// decoded tick to the bus's "tick" topic.
func (c *Client) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.connectAndServe(ctx); err != nil {
			slog.Warn("broker: connection ended", "error", err, "attempt", attempt)
		}
		c.stats.Connected.Store(false)
		if ctx.Err() != nil {
			return
		}
		attempt++
		c.stats.ReconnectAttempts.Add(1)
		delay := backoffWithJitter(c.cfg.BaseDelay, c.cfg.MaxDelay, attempt)
		slog.Info("broker: reconnecting", "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// backoffWithJitter implements min(base*2^attempt, cap) with full jitter
// in [0, 0.3*delay], unlike a bare multiplier^attempts schedule which
// lets synchronized clients retry in lockstep.
func backoffWithJitter(base, capDelay time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > capDelay {
			delay = capDelay
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(float64(delay) * 0.3)))
	return delay + jitter
}

func (c *Client) connectAndServe(ctx context.Context) error {
	conn, _, err := c.dial.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	for _, symbol := range c.cfg.Symbols {
		if err := conn.WriteJSON(subscribeFrame{Ticks: symbol, Subscribe: 1}); err != nil {
			return fmt.Errorf("subscribe %s: %w", symbol, err)
		}
	}

	c.stats.Connected.Store(true)
	c.stats.ConnectedSinceMs.Store(time.Now().UnixMilli())
	slog.Info("broker: connected", "symbols", c.cfg.Symbols)

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.heartbeatLoop(readCtx, conn)

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.handleMessage(message)
	}
}

func (c *Client) handleMessage(message []byte) {
	var frame tickFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		slog.Warn("broker: dropping malformed frame", "error", err)
		return
	}
	if frame.Tick.Symbol == "" {
		var envelope struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(message, &envelope) == nil && envelope.Error != nil {
			slog.Error("broker: error envelope", "code", envelope.Error.Code, "message", envelope.Error.Message)
		}
		return
	}
	tick := model.Tick{
		Symbol: frame.Tick.Symbol,
		Epoch:  frame.Tick.Epoch,
		Quote:  frame.Tick.Quote,
	}
	if frame.Tick.Bid != nil {
		tick.Bid = *frame.Tick.Bid
		tick.HasBid = true
	}
	if frame.Tick.Ask != nil {
		tick.Ask = *frame.Tick.Ask
		tick.HasAsk = true
	}
	c.stats.TicksReceived.Add(1)
	c.stats.LastTickEpochMs.Store(int64(tick.Epoch * 1000))
	c.bus.Publish("tick", tick)
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.HeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteJSON(map[string]int{"ping": 1})
			c.mu.Unlock()
			if err != nil {
				slog.Warn("broker: heartbeat write failed", "error", err)
				return
			}
		}
	}
}
