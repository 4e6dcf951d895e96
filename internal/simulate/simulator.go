package simulate

import (
	"github.com/google/uuid"

	"indexpulse/internal/model"
)

// Config holds the tunable constants governing trade simulation.
type Config struct {
	MaxTradeDurationMinutes int
}

// Simulator owns all mutation of SimulatedTrade through TradeState. It
// creates trades from signals and evaluates the active trade on every
// tick in strict expiry-before-SL-before-TP order.
type Simulator struct {
	cfg            Config
	state          *TradeState
	idGen          func() string
	signalsIgnored int
}

// New creates a Simulator backed by state.
func New(cfg Config, state *TradeState) *Simulator {
	return &Simulator{
		cfg:   cfg,
		state: state,
		idGen: func() string { return uuid.NewString() },
	}
}

// SignalsIgnored returns the count of signals rejected because the
// symbol already had an active trade.
func (s *Simulator) SignalsIgnored() int { return s.signalsIgnored }

// OnSignal creates a PENDING trade from sig and registers it in Trade
// State. If the symbol already has an active trade the signal is
// ignored and the ignored-signal counter is incremented.
func (s *Simulator) OnSignal(sig model.Signal) (model.SimulatedTrade, bool) {
	trade := model.SimulatedTrade{
		ID:              s.idGen(),
		Symbol:          sig.Symbol,
		Direction:       sig.Direction,
		SignalID:        sig.ID,
		PlannedEntry:    sig.Entry,
		PlannedSL:       sig.StopLoss,
		PlannedTP:       sig.TakeProfit,
		PlannedRR:       sig.RRRealized,
		Conditions:      sig.Conditions,
		MaxDurationSecs: float64(s.cfg.MaxTradeDurationMinutes) * 60,
		Status:          model.Pending,
	}
	if !s.state.Register(trade) {
		s.signalsIgnored++
		return model.SimulatedTrade{}, false
	}
	return trade, true
}

// EvaluateTick applies tick to the symbol's active trade, if any. It
// returns the closed trade and true only on the tick that terminates it;
// the PENDING->OPEN activation tick and every other non-terminal tick
// return false.
func (s *Simulator) EvaluateTick(tick model.Tick) (model.SimulatedTrade, bool) {
	trade, ok := s.state.ActiveBySymbol(tick.Symbol)
	if !ok {
		return model.SimulatedTrade{}, false
	}

	switch trade.Status {
	case model.Pending:
		trade.Status = model.Open
		trade.EntryPrice = tick.Quote
		trade.OpenTS = tick.Epoch
		return model.SimulatedTrade{}, false

	case model.Open:
		return s.evaluateOpen(trade, tick)

	default:
		return model.SimulatedTrade{}, false
	}
}

func (s *Simulator) evaluateOpen(trade *model.SimulatedTrade, tick model.Tick) (model.SimulatedTrade, bool) {
	var status model.TradeStatus

	switch {
	case tick.Epoch-trade.OpenTS >= trade.MaxDurationSecs:
		status = model.Expired
	case trade.Direction == model.BUY && tick.Quote <= trade.PlannedSL:
		status = model.Loss
	case trade.Direction == model.SELL && tick.Quote >= trade.PlannedSL:
		status = model.Loss
	case trade.Direction == model.BUY && tick.Quote >= trade.PlannedTP:
		status = model.Profit
	case trade.Direction == model.SELL && tick.Quote <= trade.PlannedTP:
		status = model.Profit
	default:
		return model.SimulatedTrade{}, false
	}

	trade.Status = status
	trade.ClosePrice = tick.Quote
	trade.CloseTS = tick.Epoch
	trade.DurationSec = trade.CloseTS - trade.OpenTS
	trade.PnLPercent = pnlPercent(trade.Direction, trade.EntryPrice, trade.ClosePrice)

	closed := *trade
	s.state.Archive(trade.Symbol)
	return closed, true
}

func pnlPercent(direction model.Direction, entry, close float64) float64 {
	if direction == model.BUY {
		return (close - entry) / entry * 100
	}
	return (entry - close) / entry * 100
}
