// Package simulate owns the tick-driven paper-trade lifecycle:
// PENDING -> OPEN -> {PROFIT, LOSS, EXPIRED}.
package simulate

import "indexpulse/internal/model"

const defaultMaxHistory = 500

// TradeState holds, per symbol, at most one active trade and a bounded
// ring of closed trades. Register is a compare-and-set that enforces the
// at-most-one-active-trade-per-symbol invariant.
type TradeState struct {
	maxHistory int
	active     map[string]*model.SimulatedTrade
	closed     map[string][]model.SimulatedTrade
}

// NewTradeState creates a TradeState whose per-symbol closed history is
// capped at maxHistory (defaulting to 500).
func NewTradeState(maxHistory int) *TradeState {
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &TradeState{
		maxHistory: maxHistory,
		active:     make(map[string]*model.SimulatedTrade),
		closed:     make(map[string][]model.SimulatedTrade),
	}
}

// Register installs trade as the active trade for its symbol. It fails
// (returns false) if an active trade already occupies that symbol's slot.
func (ts *TradeState) Register(trade model.SimulatedTrade) bool {
	if _, occupied := ts.active[trade.Symbol]; occupied {
		return false
	}
	t := trade
	ts.active[trade.Symbol] = &t
	return true
}

// ActiveBySymbol returns a pointer to the symbol's active trade for
// in-place mutation by the simulator, the sole authorized mutator.
func (ts *TradeState) ActiveBySymbol(symbol string) (*model.SimulatedTrade, bool) {
	t, ok := ts.active[symbol]
	return t, ok
}

// AllActive returns a defensive copy of every currently active trade.
func (ts *TradeState) AllActive() []model.SimulatedTrade {
	out := make([]model.SimulatedTrade, 0, len(ts.active))
	for _, t := range ts.active {
		out = append(out, *t)
	}
	return out
}

// Archive moves the symbol's active trade (which must already carry a
// terminal status) into the bounded closed history and clears the active
// slot.
func (ts *TradeState) Archive(symbol string) {
	t, ok := ts.active[symbol]
	if !ok {
		return
	}
	delete(ts.active, symbol)

	hist := ts.closed[symbol]
	hist = append(hist, *t)
	if len(hist) > ts.maxHistory {
		hist = hist[len(hist)-ts.maxHistory:]
	}
	ts.closed[symbol] = hist
}

// ClosedBySymbol returns a defensive copy of the symbol's closed-trade
// history, oldest first.
func (ts *TradeState) ClosedBySymbol(symbol string) []model.SimulatedTrade {
	hist := ts.closed[symbol]
	out := make([]model.SimulatedTrade, len(hist))
	copy(out, hist)
	return out
}

// AllClosed returns a defensive copy of every closed trade across every
// symbol, in no particular cross-symbol order.
func (ts *TradeState) AllClosed() []model.SimulatedTrade {
	var out []model.SimulatedTrade
	for _, hist := range ts.closed {
		out = append(out, hist...)
	}
	return out
}
