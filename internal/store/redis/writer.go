// Package redis persists engine events to Redis Streams (for replay)
// and republishes them on Redis PubSub (for other processes to
// fan out, mirroring the in-process bus). Writes run through a
// CircuitBreaker so a Redis outage degrades to local buffering instead
// of blocking the orchestrator.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"indexpulse/internal/model"
)

const defaultLatestTTL = 30 * time.Minute

// Config configures the Redis sink.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Writer is a PersistenceSink backed by Redis.
type Writer struct {
	client *goredis.Client
	bus    model.EventBus
	cb     *CircuitBreaker
	buf    *BufferedWriter
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a Writer and pings the server.
func New(cfg Config, bus model.EventBus) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis: connected", "addr", cfg.Addr)
	w := &Writer{client: client, bus: bus}
	w.cb = NewCircuitBreaker("redis-writer", 5, 10*time.Second)
	w.cb.OnStateChange = func(from, to State) {
		slog.Warn("redis: circuit breaker transition", "breaker", w.cb.Name(), "from", from, "to", to)
	}
	w.buf = NewBufferedWriter(context.Background(), w, w.cb, 10000)
	return w, nil
}

// Run subscribes to every persisted topic and writes until ctx is
// cancelled.
func (w *Writer) Run(ctx context.Context) {
	candles := w.bus.Subscribe("candle", "redis")
	tfCandles := w.bus.Subscribe("tf_candle", "redis")
	signals := w.bus.Subscribe("signal", "redis")
	trades := w.bus.Subscribe("trade_closed", "redis")

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-candles:
			if ok {
				w.buf.WriteCandle(v.(model.Candle))
			}
		case v, ok := <-tfCandles:
			if ok {
				w.buf.WriteTFCandle(v.(model.TFCandle))
			}
		case v, ok := <-signals:
			if ok {
				w.writeSignal(ctx, v.(model.Signal))
			}
		case v, ok := <-trades:
			if ok {
				w.writeTrade(ctx, v.(model.SimulatedTrade))
			}
		}
	}
}

// writeCandle performs a pipelined write for a base candle: stream
// append, latest-value cache, and pubsub republish.
func (w *Writer) writeCandle(ctx context.Context, candle model.Candle) {
	jsonData, err := json.Marshal(candle)
	if err != nil {
		slog.Warn("redis: marshal candle failed", "error", err)
		return
	}
	streamKey := "candle:" + candle.Symbol
	latestKey := "candle:latest:" + candle.Symbol
	pubsubCh := "engine:candle:" + candle.Symbol

	pipe := w.client.Pipeline()
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{Stream: streamKey, MaxLen: 12000, Approx: true, Values: map[string]interface{}{"data": jsonData}})
	pipe.Publish(ctx, pubsubCh, jsonData)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("redis: candle pipeline error", "symbol", candle.Symbol, "error", err)
	}
}

// writeTFCandle performs a pipelined write for a timeframe candle.
func (w *Writer) writeTFCandle(ctx context.Context, tfc model.TFCandle) {
	jsonData, err := json.Marshal(tfc)
	if err != nil {
		slog.Warn("redis: marshal tf_candle failed", "error", err)
		return
	}
	streamKey := fmt.Sprintf("tf_candle:%ds:%s", tfc.TF, tfc.Symbol)
	latestKey := fmt.Sprintf("tf_candle:latest:%ds:%s", tfc.TF, tfc.Symbol)
	pubsubCh := fmt.Sprintf("engine:tf_candle:%ds:%s", tfc.TF, tfc.Symbol)

	maxLen := int64(10800/tfc.TF) + 100
	if maxLen < 200 {
		maxLen = 200
	}

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{Stream: streamKey, MaxLen: maxLen, Approx: true, Values: map[string]interface{}{"data": jsonData}})
	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, pubsubCh, jsonData)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("redis: tf_candle pipeline error", "symbol", tfc.Symbol, "tf", tfc.TF, "error", err)
	}
}

func (w *Writer) writeSignal(ctx context.Context, s model.Signal) {
	jsonData, err := json.Marshal(s)
	if err != nil {
		slog.Warn("redis: marshal signal failed", "error", err)
		return
	}
	if err := w.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: "signal:" + s.Symbol,
		MaxLen: 2000,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	}).Err(); err != nil {
		slog.Warn("redis: signal write error", "symbol", s.Symbol, "error", err)
	}
	w.client.Publish(ctx, "engine:signal:"+s.Symbol, jsonData)
}

func (w *Writer) writeTrade(ctx context.Context, t model.SimulatedTrade) {
	jsonData, err := json.Marshal(t)
	if err != nil {
		slog.Warn("redis: marshal trade failed", "error", err)
		return
	}
	if err := w.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: "trade:" + t.Symbol,
		MaxLen: 2000,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	}).Err(); err != nil {
		slog.Warn("redis: trade write error", "symbol", t.Symbol, "error", err)
	}
	w.client.Publish(ctx, "engine:trade_closed:"+t.Symbol, jsonData)
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
