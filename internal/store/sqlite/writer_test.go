package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"indexpulse/internal/bus"
	"indexpulse/internal/model"
)

func TestWriter_PersistsTFCandlesReadableByReader(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")

	b := bus.New(100)
	w, err := New(Config{DBPath: dbPath}, b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	// Run subscribes when it starts; events published before that are
	// not delivered to it, so give it time to subscribe.
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 3; i++ {
		b.Publish("tf_candle", model.TFCandle{
			Symbol: "R_100", TF: 300, OpenTime: float64(i * 300),
			Open: 100 + float64(i), High: 101 + float64(i), Low: 99 + float64(i), Close: 100.5 + float64(i), Count: 60,
		})
	}
	b.Publish("signal", model.Signal{ID: "sig-1", Symbol: "R_100", Direction: model.BUY, Entry: 100, Confidence: 3})
	b.Publish("trade_closed", model.SimulatedTrade{ID: "trd-1", Symbol: "R_100", Status: model.Profit, EntryPrice: 100, ClosePrice: 102, PnLPercent: 2})

	// tf_candles are batched with a flush timer; give it time to flush,
	// then cancel to force a final flush of anything still pending.
	time.Sleep(300 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	reader, err := NewReader(dbPath)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer reader.Close()

	candles, err := reader.ReadTFCandles("R_100", 300, 10)
	if err != nil {
		t.Fatalf("ReadTFCandles: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	for i, c := range candles {
		if c.OpenTime != float64(i*300) {
			t.Errorf("candle %d: expected ascending open_time %d, got %v", i, i*300, c.OpenTime)
		}
	}
}

func TestReader_ReadTFCandlesEmptyWhenNoneStored(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "engine.db")
	b := bus.New(10)
	w, err := New(Config{DBPath: dbPath}, b)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	reader, err := NewReader(dbPath)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer reader.Close()

	candles, err := reader.ReadTFCandles("R_100", 300, 10)
	if err != nil {
		t.Fatalf("ReadTFCandles: %v", err)
	}
	if len(candles) != 0 {
		t.Errorf("expected no candles, got %d", len(candles))
	}
}
