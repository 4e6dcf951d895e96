package model

// Direction is the side of a Signal or SimulatedTrade.
type Direction string

const (
	BUY  Direction = "BUY"
	SELL Direction = "SELL"
)

// Signal is an immutable multi-confirmation trading signal emitted by the
// signal engine. Once published it is never mutated.
type Signal struct {
	ID                  string    `json:"id"`
	Symbol              string    `json:"symbol"`
	Direction           Direction `json:"direction"`
	Entry               float64   `json:"entry"`
	StopLoss            float64   `json:"stop_loss"`
	TakeProfit          float64   `json:"take_profit"`
	RRRealized          float64   `json:"rr_realized"`
	GeneratedAt         float64   `json:"generated_at"`
	CandleTimestamp     float64   `json:"candle_timestamp"`
	Conditions          []string  `json:"conditions"`
	Confidence          int       `json:"confidence"`
	EstimatedDurationMin float64  `json:"estimated_duration_minutes"`
}
