package signal

import (
	"testing"

	"indexpulse/internal/model"
	"indexpulse/internal/sr"
)

func defaultSRConfig() sr.Config {
	return sr.Config{TolerancePct: 0.0015, KBreak: 1.2, MaxLevels: 10, ConsolidationN: 10, KConsolidation: 2.0}
}

func defaultSignalConfig() Config {
	return Config{
		MinConfirmations: 2,
		RRRatio:          2.0,
		MinRR:            1.0,
		RSIOversold:      35,
		RSIOverbought:    65,
		MinSLPct:         0.0002,
		CooldownCandles:  3,
	}
}

func snap(fast, slow, rsi float64) model.IndicatorSnapshot {
	f, s, r := fast, slow, rsi
	return model.IndicatorSnapshot{Symbol: "S", TF: 300, EMAFast: &f, EMASlow: &s, RSI: &r}
}

// trendingHistory returns a ten-candle buffer ending with last: nine
// rising candles of range 1.0 (lows 90..98) precede it, so the window's
// span is far above twice its mean range and the consolidation filter
// (which treats fewer than ten candles as consolidating) lets it through.
func trendingHistory(last model.TFCandle) []model.TFCandle {
	var buf []model.TFCandle
	for i := 0; i < 9; i++ {
		low := 90 + float64(i)
		buf = append(buf, model.TFCandle{Symbol: "S", OpenTime: last.OpenTime - float64((9-i)*300), Open: low, High: low + 1, Low: low, Close: low + 1, TF: last.TF})
	}
	return append(buf, last)
}

func TestEngine_EMACrossDetection(t *testing.T) {
	srEngine := sr.New(defaultSRConfig())
	e := New(defaultSignalConfig(), srEngine)

	// seed a support level far below so risk computation succeeds
	srEngine.Update("S", []model.TFCandle{
		{Symbol: "S", OpenTime: 0, High: 105, Low: 95},
		{Symbol: "S", OpenTime: 300, High: 102, Low: 80}, // swing low 80
		{Symbol: "S", OpenTime: 600, High: 103, Low: 90},
	})

	c := model.TFCandle{Symbol: "S", OpenTime: 900, Open: 99, High: 101, Low: 98, Close: 100, TF: 300}
	buf := trendingHistory(c)

	// prime "previous" snapshot with ema_fast < ema_slow
	e.Evaluate(c, snap(9.90, 10.00, 40), buf)

	// current snapshot: ema_fast crosses above ema_slow
	sig, ok := e.Evaluate(c, snap(10.05, 10.00, 45), buf)
	if !ok {
		t.Fatal("expected a signal on ema_fast crossing above ema_slow")
	}
	found := false
	for _, c := range sig.Conditions {
		if c == "ema_cross" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected ema_cross among conditions, got %v", sig.Conditions)
	}
	if sig.Direction != model.BUY {
		t.Errorf("expected BUY direction, got %s", sig.Direction)
	}
}

func TestEngine_ConsolidationSuppressesSignal(t *testing.T) {
	srEngine := sr.New(defaultSRConfig())
	e := New(defaultSignalConfig(), srEngine)

	var buf []model.TFCandle
	for i := 0; i < 10; i++ {
		buf = append(buf, model.TFCandle{Symbol: "S", OpenTime: float64(i * 300), Open: 100, High: 100.9, Low: 99.9, Close: 100, TF: 300})
	}

	_, ok := e.Evaluate(buf[len(buf)-1], snap(10.05, 10.00, 45), buf)
	if ok {
		t.Fatal("expected consolidation filter to suppress the signal")
	}
}

func TestEngine_CooldownEnforced(t *testing.T) {
	srEngine := sr.New(defaultSRConfig())
	e := New(defaultSignalConfig(), srEngine)
	srEngine.Update("S", []model.TFCandle{
		{Symbol: "S", OpenTime: 0, High: 105, Low: 95},
		{Symbol: "S", OpenTime: 300, High: 102, Low: 80},
		{Symbol: "S", OpenTime: 600, High: 103, Low: 90},
	})

	c1 := model.TFCandle{Symbol: "S", OpenTime: 900, Open: 99, High: 101, Low: 98, Close: 100, TF: 300}
	e.Evaluate(c1, snap(9.90, 10.00, 40), trendingHistory(c1))
	sig1, ok := e.Evaluate(c1, snap(10.05, 10.00, 45), trendingHistory(c1))
	if !ok {
		t.Fatal("expected first signal to be emitted")
	}

	// a second candle only one bucket later (< cooldown_candles * interval) must be rejected
	c2 := model.TFCandle{Symbol: "S", OpenTime: 1200, Open: 100, High: 104, Low: 99, Close: 101, TF: 300}
	_, ok = e.Evaluate(c2, snap(10.10, 10.00, 48), []model.TFCandle{c1, c2})
	if ok {
		t.Fatal("expected cooldown to suppress a signal within cooldown_candles of the first")
	}
	_ = sig1
}

func TestEngine_PrevSnapshotUpdatedEvenWhenNoSignal(t *testing.T) {
	srEngine := sr.New(defaultSRConfig())
	e := New(defaultSignalConfig(), srEngine)
	c := model.TFCandle{Symbol: "S", OpenTime: 0, Open: 100, High: 100, Low: 100, Close: 100, TF: 300}

	_, ok := e.Evaluate(c, model.IndicatorSnapshot{Symbol: "S", TF: 300}, []model.TFCandle{c})
	if ok {
		t.Fatal("expected no signal before warm-up")
	}
	st := e.get("S")
	if !st.hasPrev {
		t.Fatal("expected prev snapshot to be recorded even when no signal was produced")
	}
}
