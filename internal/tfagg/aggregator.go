// Package tfagg folds closed base candles into higher-timeframe candles,
// emitting each TF candle only when its bucket closes.
package tfagg

import "indexpulse/internal/model"

type tfState struct {
	candle  model.TFCandle
	started bool
}

// Aggregator maintains one building TF candle per (symbol, TF) across a
// fixed set of timeframes established at construction.
type Aggregator struct {
	tfs    []int
	states map[string]map[int]*tfState // symbol -> tf -> state
}

// New creates an Aggregator for the given subset of timeframes (seconds).
func New(tfs []int) *Aggregator {
	cp := make([]int, len(tfs))
	copy(cp, tfs)
	return &Aggregator{
		tfs:    cp,
		states: make(map[string]map[int]*tfState),
	}
}

// Timeframes returns the fixed set of timeframes this aggregator folds.
func (a *Aggregator) Timeframes() []int {
	return a.tfs
}

// Ingest folds a closed base candle into every configured timeframe for
// its symbol, returning the TF candles that closed as a result.
func (a *Aggregator) Ingest(base model.Candle) []model.TFCandle {
	perSymbol := a.states[base.Symbol]
	if perSymbol == nil {
		perSymbol = make(map[int]*tfState)
		a.states[base.Symbol] = perSymbol
	}

	var closed []model.TFCandle
	for _, tf := range a.tfs {
		st := perSymbol[tf]
		if st == nil {
			st = &tfState{}
			perSymbol[tf] = st
		}

		if !st.started {
			st.candle = seedTF(base, tf)
			st.started = true
			continue
		}

		if base.OpenTime < st.candle.CloseTime() {
			fold(&st.candle, base)
			continue
		}

		closed = append(closed, st.candle)
		st.candle = seedTF(base, tf)
	}
	return closed
}

func seedTF(base model.Candle, tf int) model.TFCandle {
	openTime := alignDown(base.OpenTime, float64(tf))
	return model.TFCandle{
		Symbol:   base.Symbol,
		TF:       tf,
		OpenTime: openTime,
		Open:     base.Open,
		High:     base.High,
		Low:      base.Low,
		Close:    base.Close,
		Count:    1,
	}
}

func fold(tfc *model.TFCandle, base model.Candle) {
	if base.High > tfc.High {
		tfc.High = base.High
	}
	if base.Low < tfc.Low {
		tfc.Low = base.Low
	}
	tfc.Close = base.Close
	tfc.Count++
}

func alignDown(t, tf float64) float64 {
	buckets := float64(int64(t / tf))
	return buckets * tf
}
