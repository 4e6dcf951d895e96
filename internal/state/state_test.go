package state

import (
	"testing"

	"indexpulse/internal/model"
)

func TestMarket_RingBufferEvictsOldestOnOverflow(t *testing.T) {
	m := New(3)
	for i := 0; i < 5; i++ {
		m.StoreCandle(model.Candle{Symbol: "S", OpenTime: float64(i), Close: float64(i)})
	}
	snap := m.Candles("S")
	if len(snap) != 3 {
		t.Fatalf("expected buffer capped at 3, got %d", len(snap))
	}
	if snap[0].OpenTime != 2 || snap[2].OpenTime != 4 {
		t.Fatalf("expected oldest two entries evicted, got open_times %v, %v, %v", snap[0].OpenTime, snap[1].OpenTime, snap[2].OpenTime)
	}
}

func TestMarket_LastTickAndPrice(t *testing.T) {
	m := New(10)
	if _, ok := m.LastTick("S"); ok {
		t.Fatal("expected no last tick before any update")
	}
	m.UpdateTick(model.Tick{Symbol: "S", Quote: 42.0, Epoch: 1})
	price, ok := m.LastPrice("S")
	if !ok || price != 42.0 {
		t.Fatalf("expected last price 42.0, got %v ok=%v", price, ok)
	}
}

func TestMarket_PerTimeframeBuffersIndependent(t *testing.T) {
	m := New(10)
	m.StoreTFCandle(model.TFCandle{Symbol: "S", TF: 300, OpenTime: 0})
	m.StoreTFCandle(model.TFCandle{Symbol: "S", TF: 900, OpenTime: 0})

	if len(m.TFCandles("S", 300)) != 1 || len(m.TFCandles("S", 900)) != 1 {
		t.Fatal("expected independent per-TF buffers each with one entry")
	}
	if len(m.TFCandles("S", 1800)) != 0 {
		t.Fatal("expected no entries for an untouched timeframe")
	}
}

func TestMarket_SnapshotsAreDefensiveCopies(t *testing.T) {
	m := New(10)
	m.StoreCandle(model.Candle{Symbol: "S", Close: 1})
	snap := m.Candles("S")
	snap[0].Close = 999
	again := m.Candles("S")
	if again[0].Close != 1 {
		t.Fatal("mutating a returned snapshot must not affect internal state")
	}
}
