package notification

import (
	"context"
	"fmt"

	"indexpulse/internal/model"
)

// Dispatcher forwards signal and trade lifecycle events to a Notifier.
type Dispatcher struct {
	bus      model.EventBus
	notifier Notifier
	signals  <-chan any
	trades   <-chan any
}

// NewDispatcher creates a Dispatcher and subscribes it to the signal and
// trade_closed topics, so events published from then on are queued for
// Run. notifier may be a LogNotifier for local development or a
// WebhookNotifier/TelegramNotifier in production.
func NewDispatcher(bus model.EventBus, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		notifier: notifier,
		signals:  bus.Subscribe("signal", "notification"),
		trades:   bus.Subscribe("trade_closed", "notification"),
	}
}

// Run notifies on each queued signal and trade_closed event until ctx
// is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	signals, trades := d.signals, d.trades

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-signals:
			if !ok {
				continue
			}
			d.notifySignal(ctx, v.(model.Signal))
		case v, ok := <-trades:
			if !ok {
				continue
			}
			d.notifyTrade(ctx, v.(model.SimulatedTrade))
		}
	}
}

func (d *Dispatcher) notifySignal(ctx context.Context, s model.Signal) {
	d.notifier.Send(ctx, Alert{
		Level:   AlertInfo,
		Title:   fmt.Sprintf("%s %s signal", s.Symbol, s.Direction),
		Message: fmt.Sprintf("entry=%.4f sl=%.4f tp=%.4f rr=%.2f confidence=%d", s.Entry, s.StopLoss, s.TakeProfit, s.RRRealized, s.Confidence),
	})
}

func (d *Dispatcher) notifyTrade(ctx context.Context, t model.SimulatedTrade) {
	level := AlertInfo
	if t.Status == model.Loss {
		level = AlertWarning
	}
	d.notifier.Send(ctx, Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s trade closed: %s", t.Symbol, t.Status),
		Message: fmt.Sprintf("entry=%.4f close=%.4f pnl=%.2f%% duration=%.0fs", t.EntryPrice, t.ClosePrice, t.PnLPercent, t.DurationSec),
	})
}
