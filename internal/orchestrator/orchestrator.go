// Package orchestrator sequences the single consumer of the tick topic:
// Candle Builder -> Timeframe Aggregator -> Market State -> Indicator
// Engine -> S/R Engine -> Signal Engine -> Trade Simulator, publishing
// every downstream event topic along the way.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"indexpulse/internal/bus"
	"indexpulse/internal/candle"
	"indexpulse/internal/indicator"
	"indexpulse/internal/logger"
	"indexpulse/internal/model"
	"indexpulse/internal/signal"
	"indexpulse/internal/simulate"
	"indexpulse/internal/sr"
	"indexpulse/internal/state"
	"indexpulse/internal/tfagg"
)

// Orchestrator is the sole mutator of per-symbol pipeline state. Every
// tick is processed synchronously in the documented sequence; external
// concurrency is limited to the active-timeframe selector.
type Orchestrator struct {
	bus *bus.Bus

	builder    *candle.Builder
	aggregator *tfagg.Aggregator
	market     *state.Market
	indicators *indicator.Engine
	srEngine   *sr.Engine
	signals    *signal.Engine
	simulator  *simulate.Simulator

	activeTF     atomic.Int64
	availableTFs map[int]bool
	filter       model.SignalFilter
}

// Config wires the fixed set of available timeframes and the default
// active one.
type Config struct {
	AvailableTimeframes []int
	DefaultTimeframe    int
}

// New creates an Orchestrator from its fully-constructed collaborators.
func New(
	b *bus.Bus,
	builder *candle.Builder,
	aggregator *tfagg.Aggregator,
	market *state.Market,
	indicators *indicator.Engine,
	srEngine *sr.Engine,
	signals *signal.Engine,
	simulator *simulate.Simulator,
	cfg Config,
	filter model.SignalFilter,
) *Orchestrator {
	if filter == nil {
		filter = model.PassThroughFilter
	}
	avail := make(map[int]bool, len(cfg.AvailableTimeframes))
	for _, tf := range cfg.AvailableTimeframes {
		avail[tf] = true
	}
	o := &Orchestrator{
		bus:          b,
		builder:      builder,
		aggregator:   aggregator,
		market:       market,
		indicators:   indicators,
		srEngine:     srEngine,
		signals:      signals,
		simulator:    simulator,
		availableTFs: avail,
		filter:       filter,
	}
	o.activeTF.Store(int64(cfg.DefaultTimeframe))
	return o
}

// SetActiveTimeframe changes the orchestrator's active timeframe. It
// takes effect immediately for subsequent TF-candle closures; no
// back-recompute of historical signals occurs.
func (o *Orchestrator) SetActiveTimeframe(tf int) error {
	if !o.availableTFs[tf] {
		return fmt.Errorf("timeframe %d is not among the configured timeframes", tf)
	}
	o.activeTF.Store(int64(tf))
	return nil
}

// ActiveTimeframe returns the currently active timeframe.
func (o *Orchestrator) ActiveTimeframe() int {
	return int(o.activeTF.Load())
}

// Run consumes the tick topic until ctx is cancelled, processing each
// tick through ProcessTick. A panic recovery per tick ensures one
// symbol's fault never halts the loop or affects another symbol.
func (o *Orchestrator) Run(ctx context.Context, ticks <-chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-ticks:
			if !ok {
				return
			}
			tick, ok := payload.(model.Tick)
			if !ok {
				continue
			}
			o.processSafely(tick)
		}
	}
}

func (o *Orchestrator) processSafely(tick model.Tick) {
	traceID := logger.TickTraceID(tick.Symbol, int64(tick.Epoch*1e9))
	defer func() {
		if r := recover(); r != nil {
			slog.Error("orchestrator: recovered from panic processing tick",
				"trace_id", traceID, "symbol", tick.Symbol, "panic", r)
		}
	}()
	o.ProcessTick(tick)
}

// ProcessTick runs the full per-tick sequence documented on the package.
func (o *Orchestrator) ProcessTick(tick model.Tick) {
	o.market.UpdateTick(tick)

	if closedTrade, ok := o.simulator.EvaluateTick(tick); ok {
		o.bus.Publish("trade_closed", closedTrade)
	}

	closedCandle, didClose := o.builder.Ingest(tick)
	if didClose {
		o.market.StoreCandle(closedCandle)
		o.bus.Publish("candle", closedCandle)
		o.processTFClosures(closedCandle)
	}

	o.bus.Publish("tick_processed", tick)
}

func (o *Orchestrator) processTFClosures(closedCandle model.Candle) {
	activeTF := o.ActiveTimeframe()

	for _, tfc := range o.aggregator.Ingest(closedCandle) {
		o.market.StoreTFCandle(tfc)
		o.bus.Publish("tf_candle", tfc)

		snap := o.indicators.Process(tfc)
		if !snapIsNull(snap) {
			o.bus.Publish("tf_indicators", snap)
		}

		if tfc.TF != activeTF {
			continue
		}

		buf := o.market.TFCandles(tfc.Symbol, tfc.TF)
		o.srEngine.Update(tfc.Symbol, buf)

		sig, ok := o.signals.Evaluate(tfc, snap, buf)
		if !ok || !o.filter(sig) {
			continue
		}

		o.bus.Publish("signal", sig)
		if trade, created := o.simulator.OnSignal(sig); created {
			o.bus.Publish("trade_opened", trade)
		}
	}
}

func snapIsNull(s model.IndicatorSnapshot) bool {
	return s.EMAFast == nil && s.EMASlow == nil && s.RSI == nil
}
