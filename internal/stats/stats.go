// Package stats computes performance analytics over closed trades in a
// single O(n) pass, with a lazy cache keyed by the closed-trade count at
// the time of computation.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"indexpulse/internal/model"
	"indexpulse/internal/simulate"
)

type cacheSlot struct {
	valid   bool
	count   int
	metrics model.PerformanceMetrics
}

// Engine serves get_metrics(symbol?) with a cache invalidated whenever
// the relevant closed-trade count changes.
type Engine struct {
	state     *simulate.TradeState
	global    cacheSlot
	perSymbol map[string]cacheSlot
}

// New creates an Engine reading closed trades from state.
func New(state *simulate.TradeState) *Engine {
	return &Engine{state: state, perSymbol: make(map[string]cacheSlot)}
}

// OnTradeClosed invalidates the cache slots affected by a newly closed
// trade: its symbol's slot and the global slot.
func (e *Engine) OnTradeClosed(trade model.SimulatedTrade) {
	delete(e.perSymbol, trade.Symbol)
	e.global.valid = false
}

// GetMetrics returns performance metrics for symbol, or across every
// symbol if symbol is empty. A cache hit occurs when the slot's stored
// count matches the current closed-trade count for that filter.
func (e *Engine) GetMetrics(symbol string) model.PerformanceMetrics {
	trades := e.closedTrades(symbol)

	if symbol == "" {
		if e.global.valid && e.global.count == len(trades) {
			return e.global.metrics
		}
		m := compute(trades)
		e.global = cacheSlot{valid: true, count: len(trades), metrics: m}
		return m
	}

	slot, ok := e.perSymbol[symbol]
	if ok && slot.valid && slot.count == len(trades) {
		return slot.metrics
	}
	m := compute(trades)
	e.perSymbol[symbol] = cacheSlot{valid: true, count: len(trades), metrics: m}
	return m
}

func (e *Engine) closedTrades(symbol string) []model.SimulatedTrade {
	if symbol == "" {
		return e.state.AllClosed()
	}
	return e.state.ClosedBySymbol(symbol)
}

func compute(trades []model.SimulatedTrade) model.PerformanceMetrics {
	sorted := make([]model.SimulatedTrade, len(trades))
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CloseTS < sorted[j].CloseTS })

	n := len(sorted)
	var m model.PerformanceMetrics
	m.EquityCurve = make([]float64, 0, n)
	if n == 0 {
		return m
	}

	grossProfit := decimal.Zero
	grossLoss := decimal.Zero
	sumDuration := 0.0
	equity := decimal.Zero
	peak := decimal.Zero
	maxDD := decimal.Zero
	best := sorted[0].PnLPercent
	worst := sorted[0].PnLPercent

	for _, t := range sorted {
		pnl := decimal.NewFromFloat(t.PnLPercent)

		switch {
		case t.Status == model.Profit:
			m.Wins++
			grossProfit = grossProfit.Add(pnl)
		case t.Status == model.Loss:
			m.Losses++
			grossLoss = grossLoss.Add(pnl.Abs())
		case t.Status == model.Expired:
			m.Expired++
			if t.PnLPercent > 0 {
				m.Wins++
				grossProfit = grossProfit.Add(pnl)
			} else if t.PnLPercent < 0 {
				m.Losses++
				grossLoss = grossLoss.Add(pnl.Abs())
			}
		}

		if t.PnLPercent > best {
			best = t.PnLPercent
		}
		if t.PnLPercent < worst {
			worst = t.PnLPercent
		}
		sumDuration += t.DurationSec

		equity = equity.Add(pnl)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		dd := peak.Sub(equity)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
		m.EquityCurve = append(m.EquityCurve, equityFloat(equity))
	}

	m.Total = n
	m.GrossProfit, _ = grossProfit.Float64()
	m.GrossLoss, _ = grossLoss.Float64()
	m.BestTrade = best
	m.WorstTrade = worst
	m.MaxDrawdown, _ = maxDD.Float64()
	m.AvgDuration = sumDuration / float64(n)
	m.TotalPnL = m.GrossProfit - m.GrossLoss

	m.WinRate = float64(m.Wins) / float64(n) * 100
	m.LossRate = 100 - m.WinRate

	if m.GrossLoss == 0 {
		m.ProfitFactor = 0
	} else {
		m.ProfitFactor = m.GrossProfit / m.GrossLoss
	}

	if m.Wins > 0 {
		m.AvgWin = m.GrossProfit / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = m.GrossLoss / float64(m.Losses)
	}

	m.Expectancy = (float64(m.Wins)/float64(n))*m.AvgWin - (float64(m.Losses)/float64(n))*m.AvgLoss

	if m.AvgLoss == 0 {
		m.AvgRRReal = 0
	} else {
		m.AvgRRReal = m.AvgWin / m.AvgLoss
	}

	return m
}

func equityFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
