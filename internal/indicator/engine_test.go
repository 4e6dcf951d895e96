package indicator

import (
	"math"
	"testing"

	"indexpulse/internal/model"
)

func closeTFC(symbol string, tf int, close float64) model.TFCandle {
	return model.TFCandle{Symbol: symbol, TF: tf, Close: close}
}

func TestEngine_RSIWarmup(t *testing.T) {
	e := New(9, 21, 14)
	closes := []float64{10, 11, 10, 11, 12, 11, 12, 13, 12, 13, 14, 13, 14, 15, 14}

	var snap model.IndicatorSnapshot
	for i, c := range closes {
		snap = e.Process(closeTFC("S", 300, c))
		if i < 13 && snap.RSI != nil {
			t.Fatalf("rsi should be null before the 14th close, got non-null at index %d", i)
		}
	}
	if snap.RSI == nil {
		t.Fatal("expected rsi to be warm after the 15th close")
	}
	want := 64.2857143
	if math.Abs(*snap.RSI-want) > 1e-3 {
		t.Errorf("expected rsi ≈ %.4f, got %.4f", want, *snap.RSI)
	}
}

func TestEngine_EMASlowWarmupBoundary(t *testing.T) {
	e := New(2, 3, 14)
	e.Process(closeTFC("S", 300, 10))
	e.Process(closeTFC("S", 300, 10))
	snap := e.Process(closeTFC("S", 300, 10))
	if snap.EMASlow == nil {
		t.Fatal("expected ema_slow to warm exactly at count == period (3)")
	}
}

func TestEngine_ConvergenceOnConstantCloses(t *testing.T) {
	e := New(3, 5, 14)
	var snap model.IndicatorSnapshot
	for i := 0; i < 40; i++ {
		snap = e.Process(closeTFC("S", 300, 50.0))
	}
	if snap.EMAFast == nil || math.Abs(*snap.EMAFast-50.0) > 1e-9 {
		t.Errorf("expected ema_fast to converge to 50.0, got %v", snap.EMAFast)
	}
	if snap.EMASlow == nil || math.Abs(*snap.EMASlow-50.0) > 1e-9 {
		t.Errorf("expected ema_slow to converge to 50.0, got %v", snap.EMASlow)
	}
	if snap.RSI == nil || math.Abs(*snap.RSI-50.0) > 1e-9 {
		t.Errorf("expected rsi to converge to 50.0 on flat closes, got %v", snap.RSI)
	}
}

func TestEngine_NullBeforeWarmup(t *testing.T) {
	e := New(9, 21, 14)
	snap := e.Process(closeTFC("S", 300, 100))
	if snap.EMAFast != nil || snap.EMASlow != nil || snap.RSI != nil {
		t.Fatal("expected all fields null on the first close")
	}
}

func TestEngine_IndependentPerSymbolAndTF(t *testing.T) {
	e := New(2, 3, 14)
	e.Process(closeTFC("A", 300, 10))
	e.Process(closeTFC("A", 300, 10))
	snapFastA := e.Process(closeTFC("A", 300, 10))
	snapB := e.Process(closeTFC("B", 300, 999))

	if snapFastA.EMAFast == nil {
		t.Fatal("symbol A should be warm on ema_fast after 3 closes")
	}
	if snapB.EMAFast != nil {
		t.Fatal("symbol B should not share warm-up state with symbol A")
	}
}
