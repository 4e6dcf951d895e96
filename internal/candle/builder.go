// Package candle folds ticks into OHLC candles at a fixed base interval.
package candle

import "indexpulse/internal/model"

// Builder maintains at most one building candle per symbol, aligned to
// Interval, folding ticks into it until a tick falls outside the current
// bucket, at which point the building candle freezes and a new one opens.
type Builder struct {
	interval float64
	building map[string]*model.Candle
}

// New creates a Builder for the given base interval in seconds.
func New(interval float64) *Builder {
	return &Builder{
		interval: interval,
		building: make(map[string]*model.Candle),
	}
}

// Ingest folds tick into the symbol's building candle. It returns the
// just-closed candle and true if the tick's bucket differs from the
// building candle's, in which case a fresh candle is opened and seeded
// with tick before returning.
func (b *Builder) Ingest(tick model.Tick) (closed model.Candle, didClose bool) {
	openTime := alignDown(tick.Epoch, b.interval)
	cur, ok := b.building[tick.Symbol]

	if !ok {
		b.building[tick.Symbol] = &model.Candle{
			Symbol:    tick.Symbol,
			OpenTime:  openTime,
			Interval:  b.interval,
			Open:      tick.Quote,
			High:      tick.Quote,
			Low:       tick.Quote,
			Close:     tick.Quote,
			TickCount: 1,
		}
		return model.Candle{}, false
	}

	if tick.Epoch < cur.CloseTime() {
		cur.High = max(cur.High, tick.Quote)
		cur.Low = min(cur.Low, tick.Quote)
		cur.Close = tick.Quote
		cur.TickCount++
		return model.Candle{}, false
	}

	closed = *cur
	b.building[tick.Symbol] = &model.Candle{
		Symbol:    tick.Symbol,
		OpenTime:  openTime,
		Interval:  b.interval,
		Open:      tick.Quote,
		High:      tick.Quote,
		Low:       tick.Quote,
		Close:     tick.Quote,
		TickCount: 1,
	}
	return closed, true
}

// Building returns a defensive copy of the symbol's in-progress candle
// and whether one exists.
func (b *Builder) Building(symbol string) (model.Candle, bool) {
	cur, ok := b.building[symbol]
	if !ok {
		return model.Candle{}, false
	}
	return *cur, true
}

func alignDown(epoch, interval float64) float64 {
	buckets := float64(int64(epoch / interval))
	return buckets * interval
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
