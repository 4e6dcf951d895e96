package model

// Tick is a single broker-delivered price update for a synthetic-index
// instrument. It is immutable once constructed by the broker client.
type Tick struct {
	Symbol string  `json:"symbol"`
	Epoch  float64 `json:"epoch"` // seconds since Unix epoch, fractional
	Quote  float64 `json:"quote"`
	Bid    float64 `json:"bid,omitempty"`
	Ask    float64 `json:"ask,omitempty"`
	HasBid bool    `json:"-"`
	HasAsk bool    `json:"-"`
}
