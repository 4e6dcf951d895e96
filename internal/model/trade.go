package model

// TradeStatus is the lifecycle status of a SimulatedTrade.
type TradeStatus string

const (
	Pending TradeStatus = "PENDING"
	Open    TradeStatus = "OPEN"
	Profit  TradeStatus = "PROFIT"
	Loss    TradeStatus = "LOSS"
	Expired TradeStatus = "EXPIRED"
)

// Terminal reports whether the status is one that no further transition
// can follow.
func (s TradeStatus) Terminal() bool {
	return s == Profit || s == Loss || s == Expired
}

// SimulatedTrade is mutable only through the transitions documented on the
// trade simulator; it is exclusively owned by Trade State.
type SimulatedTrade struct {
	ID              string      `json:"id"`
	Symbol          string      `json:"symbol"`
	Direction       Direction   `json:"direction"`
	SignalID        string      `json:"signal_id"`
	PlannedEntry    float64     `json:"planned_entry"`
	PlannedSL       float64     `json:"planned_sl"`
	PlannedTP       float64     `json:"planned_tp"`
	PlannedRR       float64     `json:"planned_rr"`
	Conditions      []string    `json:"conditions"`
	MaxDurationSecs float64     `json:"max_duration_seconds"`

	Status      TradeStatus `json:"status"`
	EntryPrice  float64     `json:"entry_price"`
	ClosePrice  float64     `json:"close_price"`
	OpenTS      float64     `json:"open_ts"`
	CloseTS     float64     `json:"close_ts"`
	DurationSec float64     `json:"duration_seconds"`
	PnLPercent  float64     `json:"pnl_percent"`
}

// PerformanceMetrics is an immutable snapshot of performance analytics
// over a set of closed trades.
type PerformanceMetrics struct {
	Total        int       `json:"total"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Expired      int       `json:"expired"`
	WinRate      float64   `json:"win_rate"`
	LossRate     float64   `json:"loss_rate"`
	ProfitFactor float64   `json:"profit_factor"` // 0 means undefined/no losses, not zero profitability
	Expectancy   float64   `json:"expectancy"`
	AvgRRReal    float64   `json:"avg_rr_real"`
	AvgDuration  float64   `json:"avg_duration"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	EquityCurve  []float64 `json:"equity_curve"`
	GrossProfit  float64   `json:"gross_profit"`
	GrossLoss    float64   `json:"gross_loss"`
	AvgWin       float64   `json:"avg_win"`
	AvgLoss      float64   `json:"avg_loss"`
	BestTrade    float64   `json:"best_trade"`
	WorstTrade   float64   `json:"worst_trade"`
	TotalPnL     float64   `json:"total_pnl"`
}
