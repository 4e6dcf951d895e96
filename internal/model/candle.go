package model

// Candle is an OHLC bucket at a fixed interval for a single symbol. It is
// frozen at the moment it closes and never republished under the same open
// time.
type Candle struct {
	Symbol    string  `json:"symbol"`
	OpenTime  float64 `json:"open_time"` // aligned to Interval, seconds
	Interval  float64 `json:"interval"`  // bucket width in seconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	TickCount int     `json:"tick_count"`
}

// CloseTime returns the exclusive upper bound of the candle's bucket.
func (c Candle) CloseTime() float64 {
	return c.OpenTime + c.Interval
}

// TFCandle is a higher-timeframe candle folded from base candles. It shares
// Candle's shape; Count here is the number of base candles merged in.
type TFCandle struct {
	Symbol   string  `json:"symbol"`
	TF       int     `json:"tf"` // timeframe in seconds
	OpenTime float64 `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Count    int     `json:"count"`
}

// CloseTime returns the exclusive upper bound of the TF candle's bucket.
func (c TFCandle) CloseTime() float64 {
	return c.OpenTime + float64(c.TF)
}
