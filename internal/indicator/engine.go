// Package indicator maintains the per-(symbol,TF) incremental EMA-fast,
// EMA-slow, and Wilder RSI accumulators, seeded by an SMA/average warm-up
// and updated in O(1) per closed TF candle thereafter.
package indicator

import "indexpulse/internal/model"

type tfIndicators struct {
	emaFast *ema
	emaSlow *ema
	rsi     *rsi
}

// Engine holds indicator state for every (symbol, TF) pair it has seen.
// It is single-goroutine, mutated only by the orchestrator.
type Engine struct {
	fastPeriod int
	slowPeriod int
	rsiPeriod  int

	state map[string]map[int]*tfIndicators // symbol -> tf -> indicators
}

// New creates an Engine with the given EMA/RSI periods.
func New(fastPeriod, slowPeriod, rsiPeriod int) *Engine {
	return &Engine{
		fastPeriod: fastPeriod,
		slowPeriod: slowPeriod,
		rsiPeriod:  rsiPeriod,
		state:      make(map[string]map[int]*tfIndicators),
	}
}

func (e *Engine) get(symbol string, tf int) *tfIndicators {
	perSymbol := e.state[symbol]
	if perSymbol == nil {
		perSymbol = make(map[int]*tfIndicators)
		e.state[symbol] = perSymbol
	}
	ind := perSymbol[tf]
	if ind == nil {
		ind = &tfIndicators{
			emaFast: newEMA(e.fastPeriod),
			emaSlow: newEMA(e.slowPeriod),
			rsi:     newRSI(e.rsiPeriod),
		}
		perSymbol[tf] = ind
	}
	return ind
}

// Process folds a closed TF candle's close price into the symbol's
// indicator state for that TF and returns the resulting snapshot. Fields
// are nil until their respective warm-up completes.
func (e *Engine) Process(tfc model.TFCandle) model.IndicatorSnapshot {
	ind := e.get(tfc.Symbol, tfc.TF)

	ind.emaFast.update(tfc.Close)
	ind.emaSlow.update(tfc.Close)
	ind.rsi.update(tfc.Close)

	snap := model.IndicatorSnapshot{Symbol: tfc.Symbol, TF: tfc.TF}
	if ind.emaFast.ready() {
		v := ind.emaFast.value()
		snap.EMAFast = &v
	}
	if ind.emaSlow.ready() {
		v := ind.emaSlow.value()
		snap.EMASlow = &v
	}
	if ind.rsi.ready() {
		v := ind.rsi.value()
		snap.RSI = &v
	}
	return snap
}
