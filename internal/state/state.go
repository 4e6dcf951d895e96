// Package state holds per-symbol Market State: last tick/price and
// bounded ring buffers of base candles and per-timeframe candles. All
// mutation happens on the single orchestrator goroutine; external
// readers receive defensive-copy snapshots.
package state

import "indexpulse/internal/model"

type symbolState struct {
	lastTick  model.Tick
	hasTick   bool
	candles   *ring[model.Candle]
	tfCandles map[int]*ring[model.TFCandle]
}

// Market is the arena-indexed per-symbol state store, created lazily on
// first tick per symbol; no cross-symbol sharing of mutable state exists.
type Market struct {
	candleBufSize int
	symbols       map[string]*symbolState
}

// New creates a Market whose ring buffers hold candleBufSize entries.
func New(candleBufSize int) *Market {
	return &Market{
		candleBufSize: candleBufSize,
		symbols:       make(map[string]*symbolState),
	}
}

func (m *Market) get(symbol string) *symbolState {
	s, ok := m.symbols[symbol]
	if !ok {
		s = &symbolState{
			candles:   newRing[model.Candle](m.candleBufSize),
			tfCandles: make(map[int]*ring[model.TFCandle]),
		}
		m.symbols[symbol] = s
	}
	return s
}

// UpdateTick records the latest tick and price for a symbol.
func (m *Market) UpdateTick(tick model.Tick) {
	s := m.get(tick.Symbol)
	s.lastTick = tick
	s.hasTick = true
}

// LastTick returns the most recent tick for a symbol.
func (m *Market) LastTick(symbol string) (model.Tick, bool) {
	s, ok := m.symbols[symbol]
	if !ok || !s.hasTick {
		return model.Tick{}, false
	}
	return s.lastTick, true
}

// LastPrice returns the most recent quote price for a symbol.
func (m *Market) LastPrice(symbol string) (float64, bool) {
	t, ok := m.LastTick(symbol)
	if !ok {
		return 0, false
	}
	return t.Quote, true
}

// StoreCandle appends a closed base candle to the symbol's ring buffer.
func (m *Market) StoreCandle(c model.Candle) {
	m.get(c.Symbol).candles.push(c)
}

// Candles returns a snapshot of the symbol's base-candle ring buffer.
func (m *Market) Candles(symbol string) []model.Candle {
	s, ok := m.symbols[symbol]
	if !ok {
		return nil
	}
	return s.candles.snapshot()
}

// StoreTFCandle appends a closed TF candle to the symbol's per-TF ring
// buffer, creating the buffer lazily on first use for that TF.
func (m *Market) StoreTFCandle(c model.TFCandle) {
	s := m.get(c.Symbol)
	r, ok := s.tfCandles[c.TF]
	if !ok {
		r = newRing[model.TFCandle](m.candleBufSize)
		s.tfCandles[c.TF] = r
	}
	r.push(c)
}

// TFCandles returns a snapshot of the symbol's ring buffer for tf.
func (m *Market) TFCandles(symbol string, tf int) []model.TFCandle {
	s, ok := m.symbols[symbol]
	if !ok {
		return nil
	}
	r, ok := s.tfCandles[tf]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// LastTFCandle returns the most recently stored TF candle for a symbol.
func (m *Market) LastTFCandle(symbol string, tf int) (model.TFCandle, bool) {
	s, ok := m.symbols[symbol]
	if !ok {
		return model.TFCandle{}, false
	}
	r, ok := s.tfCandles[tf]
	if !ok {
		return model.TFCandle{}, false
	}
	return r.last()
}
