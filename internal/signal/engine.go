// Package signal implements the multi-confirmation signal evaluator:
// EMA cross/trend, RSI reversal, and S/R bounce/breakout conditions
// gated by a minimum-confirmations threshold, cooldown, and consolidation
// filter, followed by risk computation (SL/TP/RR).
package signal

import (
	"github.com/google/uuid"

	"indexpulse/internal/model"
	"indexpulse/internal/sr"
)

// Config holds the tunable constants governing signal evaluation.
type Config struct {
	MinConfirmations int
	RRRatio          float64
	MinRR            float64
	RSIOversold      float64
	RSIOverbought    float64
	MinSLPct         float64
	CooldownCandles  int
	MaxRecentSignals int
}

type symbolState struct {
	lastSignalTS float64
	hasSignal    bool
	prev         model.IndicatorSnapshot
	hasPrev      bool
	recent       []model.Signal
}

// Engine evaluates closed candles on the active timeframe and emits
// Signals when enough independent confirmations align. It is pure state
// plus an S/R engine dependency; the idGen hook exists so tests can
// supply deterministic IDs.
type Engine struct {
	cfg     Config
	sr      *sr.Engine
	symbols map[string]*symbolState
	idGen   func() string
}

// New creates an Engine wired to the given S/R engine.
func New(cfg Config, srEngine *sr.Engine) *Engine {
	if cfg.MaxRecentSignals <= 0 {
		cfg.MaxRecentSignals = 50
	}
	return &Engine{
		cfg:     cfg,
		sr:      srEngine,
		symbols: make(map[string]*symbolState),
		idGen:   func() string { return uuid.NewString() },
	}
}

func (e *Engine) get(symbol string) *symbolState {
	s, ok := e.symbols[symbol]
	if !ok {
		s = &symbolState{}
		e.symbols[symbol] = s
	}
	return s
}

// Evaluate runs the full signal pipeline for a closed candle on the
// active timeframe. buf is that timeframe's stored candle history for
// the symbol, ending with candle itself.
func (e *Engine) Evaluate(candle model.TFCandle, snap model.IndicatorSnapshot, buf []model.TFCandle) (model.Signal, bool) {
	st := e.get(candle.Symbol)
	defer func() {
		st.prev = snap
		st.hasPrev = true
	}()

	if !snap.Ready() {
		return model.Signal{}, false
	}

	if st.hasSignal && candle.OpenTime-st.lastSignalTS < float64(e.cfg.CooldownCandles*candle.TF) {
		return model.Signal{}, false
	}

	if e.sr.Consolidating(buf) {
		return model.Signal{}, false
	}

	buySet, sellSet := e.evaluateConditions(candle, snap, st, buf)

	var direction model.Direction
	var conditions []string
	switch {
	case len(buySet) >= e.cfg.MinConfirmations && len(buySet) > len(sellSet):
		direction = model.BUY
		conditions = buySet
	case len(sellSet) >= e.cfg.MinConfirmations && len(sellSet) > len(buySet):
		direction = model.SELL
		conditions = sellSet
	default:
		return model.Signal{}, false
	}

	sig, ok := e.computeRisk(candle, direction, conditions, buf)
	if !ok {
		return model.Signal{}, false
	}

	st.lastSignalTS = candle.OpenTime
	st.hasSignal = true
	st.recent = append(st.recent, sig)
	if len(st.recent) > e.cfg.MaxRecentSignals {
		st.recent = st.recent[len(st.recent)-e.cfg.MaxRecentSignals:]
	}
	return sig, true
}

func (e *Engine) evaluateConditions(candle model.TFCandle, snap model.IndicatorSnapshot, st *symbolState, buf []model.TFCandle) (buySet, sellSet []string) {
	fast, slow, rsiVal := *snap.EMAFast, *snap.EMASlow, *snap.RSI
	diff := fast - slow

	if st.hasPrev && st.prev.Ready() {
		prevDiff := *st.prev.EMAFast - *st.prev.EMASlow
		switch {
		case prevDiff <= 0 && diff > 0:
			buySet = append(buySet, "ema_cross")
		case prevDiff >= 0 && diff < 0:
			sellSet = append(sellSet, "ema_cross")
		}
	}

	if diff > 0 {
		buySet = append(buySet, "ema_trend")
	} else {
		sellSet = append(sellSet, "ema_trend")
	}

	if st.hasPrev && st.prev.Ready() {
		prevRSI := *st.prev.RSI
		switch {
		case rsiVal < e.cfg.RSIOversold && rsiVal > prevRSI:
			buySet = append(buySet, "rsi_reversal")
		case rsiVal > e.cfg.RSIOverbought && rsiVal < prevRSI:
			sellSet = append(sellSet, "rsi_reversal")
		}
	}

	support, hasSupport := e.sr.NearestSupport(candle.Symbol, candle.Close)
	if hasSupport && e.sr.BounceOnSupport(candle, support) {
		buySet = append(buySet, "sr_bounce")
	}
	resistance, hasResistance := e.sr.NearestResistance(candle.Symbol, candle.Close)
	if hasResistance && e.sr.RejectionAtResistance(candle, resistance) {
		sellSet = append(sellSet, "sr_bounce")
	}

	avgRange := sr.AvgRange(buf)
	if hasResistance && e.sr.BreakoutAbove(candle, resistance, avgRange) {
		buySet = append(buySet, "breakout")
	}
	if hasSupport && e.sr.BreakoutBelow(candle, support, avgRange) {
		sellSet = append(sellSet, "breakout")
	}

	return buySet, sellSet
}

func (e *Engine) computeRisk(candle model.TFCandle, direction model.Direction, conditions []string, buf []model.TFCandle) (model.Signal, bool) {
	entry := candle.Close
	var sl, slDistance, tp float64

	switch direction {
	case model.BUY:
		s, ok := e.sr.NearestSupport(candle.Symbol, entry)
		if !ok {
			s, ok = e.sr.LastSwingLow(candle.Symbol)
		}
		if !ok || s >= entry {
			return model.Signal{}, false
		}
		sl = s
		slDistance = entry - sl
		tp = entry + slDistance*e.cfg.RRRatio
	case model.SELL:
		r, ok := e.sr.NearestResistance(candle.Symbol, entry)
		if !ok {
			r, ok = e.sr.LastSwingHigh(candle.Symbol)
		}
		if !ok || r <= entry {
			return model.Signal{}, false
		}
		sl = r
		slDistance = sl - entry
		tp = entry - slDistance*e.cfg.RRRatio
	}

	if slDistance/entry < e.cfg.MinSLPct {
		return model.Signal{}, false
	}

	tpDistance := tp - entry
	if tpDistance < 0 {
		tpDistance = -tpDistance
	}
	rrRealized := tpDistance / slDistance
	if rrRealized < e.cfg.MinRR {
		return model.Signal{}, false
	}

	avgRange := sr.AvgRange(buf)
	estimatedDuration := 0.0
	if avgRange > 0 {
		estimatedDuration = (tpDistance / avgRange) * float64(candle.TF) / 60.0
	}

	return model.Signal{
		ID:                   e.idGen(),
		Symbol:               candle.Symbol,
		Direction:            direction,
		Entry:                entry,
		StopLoss:             sl,
		TakeProfit:           tp,
		RRRealized:           rrRealized,
		GeneratedAt:          candle.OpenTime,
		CandleTimestamp:      candle.OpenTime,
		Conditions:           conditions,
		Confidence:           len(conditions),
		EstimatedDurationMin: estimatedDuration,
	}, true
}
