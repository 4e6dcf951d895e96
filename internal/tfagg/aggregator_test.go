package tfagg

import (
	"testing"

	"indexpulse/internal/model"
)

func base(symbol string, openTime, o, h, l, c float64) model.Candle {
	return model.Candle{Symbol: symbol, OpenTime: openTime, Interval: 5, Open: o, High: h, Low: l, Close: c, TickCount: 1}
}

func TestAggregator_FoldsUntilTFCloses(t *testing.T) {
	a := New([]int{300}) // 5m TF from 5s base candles

	var closed []model.TFCandle
	for i := 0; i < 60; i++ { // 60 base candles of 5s = 300s = one full TF bucket
		openTime := float64(i * 5)
		closed = append(closed, a.Ingest(base("S", openTime, 100, 101, 99, 100))...)
	}

	if len(closed) != 0 {
		t.Fatalf("TF bucket should not close until a base candle from the next bucket arrives, got %d closed", len(closed))
	}

	next := a.Ingest(base("S", 300, 100, 102, 98, 101))
	if len(next) != 1 {
		t.Fatalf("expected exactly one closed TF candle, got %d", len(next))
	}
	tfc := next[0]
	if tfc.OpenTime != 0 || tfc.Count != 60 {
		t.Fatalf("unexpected closed TF candle: %+v", tfc)
	}
}

func TestAggregator_ContainmentInvariant(t *testing.T) {
	a := New([]int{300})
	a.Ingest(base("S", 0, 100, 100, 100, 100))
	closed := a.Ingest(base("S", 150, 100, 105, 95, 102))
	if len(closed) != 0 {
		t.Fatal("should not close yet")
	}
	finalClosed := a.Ingest(base("S", 300, 100, 100, 100, 100))
	tfc := finalClosed[0]
	baseOpenTime := 150.0
	if !(tfc.OpenTime <= baseOpenTime && baseOpenTime < tfc.OpenTime+float64(tfc.TF)) {
		t.Errorf("base candle open_time %v not contained in TF bucket [%v, %v)", baseOpenTime, tfc.OpenTime, tfc.OpenTime+float64(tfc.TF))
	}
}

func TestAggregator_MultipleTimeframesIndependent(t *testing.T) {
	a := New([]int{15, 300})
	for i := 0; i < 3; i++ {
		closed := a.Ingest(base("S", float64(i*5), 100, 100, 100, 100))
		if i < 2 && len(closed) != 0 {
			t.Fatalf("15s TF should not close before bucket fills, iteration %d", i)
		}
	}
	closed := a.Ingest(base("S", 15, 100, 100, 100, 100))
	if len(closed) != 1 || closed[0].TF != 15 {
		t.Fatalf("expected only the 15s TF to close, got %+v", closed)
	}
}
