// Package sr detects swing highs/lows on the active timeframe and
// derives support/resistance levels and the predicates (bounce,
// rejection, breakout, consolidation) the signal engine consumes.
package sr

import "indexpulse/internal/model"

const avgRangeWindow = 10

// Config holds the tunable constants governing swing/level detection.
type Config struct {
	TolerancePct   float64
	KBreak         float64
	MaxLevels      int
	ConsolidationN int
	KConsolidation float64
}

type levels struct {
	highs []model.SwingLevel
	lows  []model.SwingLevel
}

// Engine holds per-symbol bounded deques of confirmed swing levels.
type Engine struct {
	cfg     Config
	symbols map[string]*levels
}

// New creates an Engine with the given configuration.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, symbols: make(map[string]*levels)}
}

func (e *Engine) get(symbol string) *levels {
	l, ok := e.symbols[symbol]
	if !ok {
		l = &levels{}
		e.symbols[symbol] = l
	}
	return l
}

// Update inspects the last three candles of buf (the active TF's stored
// history for symbol) and, if the middle candle is a confirmed swing
// high or low, appends it to the bounded deque. Detection is one candle
// late by construction: buf's last element is the most recently closed
// candle, and the swing under test is buf[len-2].
func (e *Engine) Update(symbol string, buf []model.TFCandle) {
	if len(buf) < 3 {
		return
	}
	prev, mid, next := buf[len(buf)-3], buf[len(buf)-2], buf[len(buf)-1]
	l := e.get(symbol)

	if mid.High > prev.High && mid.High > next.High {
		l.highs = append(l.highs, model.SwingLevel{Price: mid.High, Timestamp: mid.OpenTime, Kind: model.SwingHigh})
		if len(l.highs) > e.cfg.MaxLevels {
			l.highs = l.highs[len(l.highs)-e.cfg.MaxLevels:]
		}
	}
	if mid.Low < prev.Low && mid.Low < next.Low {
		l.lows = append(l.lows, model.SwingLevel{Price: mid.Low, Timestamp: mid.OpenTime, Kind: model.SwingLow})
		if len(l.lows) > e.cfg.MaxLevels {
			l.lows = l.lows[len(l.lows)-e.cfg.MaxLevels:]
		}
	}
}

// NearestSupport returns max{s : s < price} among confirmed swing lows.
func (e *Engine) NearestSupport(symbol string, price float64) (float64, bool) {
	l, ok := e.symbols[symbol]
	if !ok {
		return 0, false
	}
	found := false
	var best float64
	for _, sw := range l.lows {
		if sw.Price < price && (!found || sw.Price > best) {
			best = sw.Price
			found = true
		}
	}
	return best, found
}

// NearestResistance returns min{r : r > price} among confirmed swing highs.
func (e *Engine) NearestResistance(symbol string, price float64) (float64, bool) {
	l, ok := e.symbols[symbol]
	if !ok {
		return 0, false
	}
	found := false
	var best float64
	for _, sw := range l.highs {
		if sw.Price > price && (!found || sw.Price < best) {
			best = sw.Price
			found = true
		}
	}
	return best, found
}

// LastSwingLow returns the most recently confirmed swing low.
func (e *Engine) LastSwingLow(symbol string) (float64, bool) {
	l, ok := e.symbols[symbol]
	if !ok || len(l.lows) == 0 {
		return 0, false
	}
	return l.lows[len(l.lows)-1].Price, true
}

// LastSwingHigh returns the most recently confirmed swing high.
func (e *Engine) LastSwingHigh(symbol string) (float64, bool) {
	l, ok := e.symbols[symbol]
	if !ok || len(l.highs) == 0 {
		return 0, false
	}
	return l.highs[len(l.highs)-1].Price, true
}

// AvgRange is the mean (high-low) over the last min(len(buf), window)
// candles, window defaulting to 10.
func AvgRange(buf []model.TFCandle) float64 {
	n := avgRangeWindow
	if len(buf) < n {
		n = len(buf)
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range buf[len(buf)-n:] {
		sum += c.High - c.Low
	}
	return sum / float64(n)
}

// BounceOnSupport: low touches support within tolerance, closes above it
// and above its own open.
func (e *Engine) BounceOnSupport(c model.TFCandle, support float64) bool {
	tol := e.cfg.TolerancePct
	return c.Low <= support*(1+tol) && c.Close > support && c.Close > c.Open
}

// RejectionAtResistance: high touches resistance within tolerance, closes
// below it and below its own open.
func (e *Engine) RejectionAtResistance(c model.TFCandle, resistance float64) bool {
	tol := e.cfg.TolerancePct
	return c.High >= resistance*(1-tol) && c.Close < resistance && c.Close < c.Open
}

// BreakoutAbove: close beyond resistance with an expanded range.
func (e *Engine) BreakoutAbove(c model.TFCandle, resistance, avgRange float64) bool {
	return c.Close > resistance && (c.High-c.Low) > avgRange*e.cfg.KBreak
}

// BreakoutBelow: close beyond support with an expanded range.
func (e *Engine) BreakoutBelow(c model.TFCandle, support, avgRange float64) bool {
	return c.Close < support && (c.High-c.Low) > avgRange*e.cfg.KBreak
}

// Consolidating reports whether the last N candles of buf are range-bound:
// (max(high) - min(low)) < kConsol * mean(high - low). Fewer than N
// candles is treated as consolidating (conservative).
func (e *Engine) Consolidating(buf []model.TFCandle) bool {
	n := e.cfg.ConsolidationN
	if len(buf) < n {
		return true
	}
	window := buf[len(buf)-n:]
	maxHigh, minLow := window[0].High, window[0].Low
	sumRange := 0.0
	for _, c := range window {
		if c.High > maxHigh {
			maxHigh = c.High
		}
		if c.Low < minLow {
			minLow = c.Low
		}
		sumRange += c.High - c.Low
	}
	meanRange := sumRange / float64(n)
	if meanRange == 0 {
		return true
	}
	return (maxHigh - minLow) < e.cfg.KConsolidation*meanRange
}
