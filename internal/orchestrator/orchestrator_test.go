package orchestrator

import (
	"testing"

	"indexpulse/internal/bus"
	"indexpulse/internal/candle"
	"indexpulse/internal/indicator"
	"indexpulse/internal/model"
	"indexpulse/internal/signal"
	"indexpulse/internal/simulate"
	"indexpulse/internal/sr"
	"indexpulse/internal/state"
	"indexpulse/internal/tfagg"
)

func newTestOrchestrator(tfs []int, active int) (*Orchestrator, *bus.Bus) {
	b := bus.New(1000)
	builder := candle.New(5)
	agg := tfagg.New(tfs)
	market := state.New(200)
	ind := indicator.New(2, 3, 4)
	srEngine := sr.New(sr.Config{TolerancePct: 0.0015, KBreak: 1.2, MaxLevels: 10, ConsolidationN: 10, KConsolidation: 2.0})
	sigEngine := signal.New(signal.Config{MinConfirmations: 1, RRRatio: 2.0, MinRR: 0.1, RSIOversold: 35, RSIOverbought: 65, MinSLPct: 0.00001, CooldownCandles: 1}, srEngine)
	ts := simulate.NewTradeState(500)
	sim := simulate.New(simulate.Config{MaxTradeDurationMinutes: 30}, ts)

	o := New(b, builder, agg, market, ind, srEngine, sigEngine, sim, Config{AvailableTimeframes: tfs, DefaultTimeframe: active}, nil)
	return o, b
}

func TestOrchestrator_PublishesTickProcessedEveryTick(t *testing.T) {
	o, b := newTestOrchestrator([]int{15}, 15)
	processed := b.Subscribe("tick_processed", "test")

	o.ProcessTick(model.Tick{Symbol: "S", Quote: 100, Epoch: 0})

	select {
	case v := <-processed:
		tick := v.(model.Tick)
		if tick.Symbol != "S" {
			t.Errorf("unexpected tick echoed: %+v", tick)
		}
	default:
		t.Fatal("expected tick_processed to be published for every tick")
	}
}

func TestOrchestrator_CandleClosurePublishesCandleAndFeedsTF(t *testing.T) {
	o, b := newTestOrchestrator([]int{15}, 15)
	candles := b.Subscribe("candle", "test")
	tfCandles := b.Subscribe("tf_candle", "test")

	o.ProcessTick(model.Tick{Symbol: "S", Quote: 100, Epoch: 0})
	o.ProcessTick(model.Tick{Symbol: "S", Quote: 101, Epoch: 5.1}) // closes first 5s bucket

	select {
	case <-candles:
	default:
		t.Fatal("expected a closed candle to be published")
	}

	// not enough base candles yet to close the 15s TF bucket
	select {
	case v := <-tfCandles:
		t.Fatalf("did not expect a TF candle yet, got %v", v)
	default:
	}
}

func TestOrchestrator_ActiveTimeframeSelector(t *testing.T) {
	o, _ := newTestOrchestrator([]int{15, 30}, 15)
	if o.ActiveTimeframe() != 15 {
		t.Fatalf("expected default active timeframe 15, got %d", o.ActiveTimeframe())
	}
	if err := o.SetActiveTimeframe(30); err != nil {
		t.Fatalf("unexpected error setting a configured timeframe: %v", err)
	}
	if o.ActiveTimeframe() != 30 {
		t.Fatalf("expected active timeframe 30 after update, got %d", o.ActiveTimeframe())
	}
	if err := o.SetActiveTimeframe(999); err == nil {
		t.Fatal("expected an error setting an unconfigured timeframe")
	}
}

func TestOrchestrator_TradeClosedPublishedOnTick(t *testing.T) {
	o, b := newTestOrchestrator([]int{15}, 15)
	tradeClosed := b.Subscribe("trade_closed", "test")

	ts := simulate.NewTradeState(500)
	_ = ts
	o.simulator.OnSignal(model.Signal{Symbol: "S", Direction: model.BUY, Entry: 100, StopLoss: 99, TakeProfit: 102})
	o.ProcessTick(model.Tick{Symbol: "S", Quote: 100.1, Epoch: 0}) // activates PENDING->OPEN
	o.ProcessTick(model.Tick{Symbol: "S", Quote: 102.5, Epoch: 1}) // crosses TP

	select {
	case v := <-tradeClosed:
		trade := v.(model.SimulatedTrade)
		if trade.Status != model.Profit {
			t.Errorf("expected PROFIT, got %s", trade.Status)
		}
	default:
		t.Fatal("expected trade_closed to be published")
	}
}
