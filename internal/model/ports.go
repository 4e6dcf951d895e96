package model

import "context"

// ── Port interfaces ──
// These decouple the streaming pipeline from its external collaborators
// (presentation, persistence, ML filtering). Each concrete implementation
// satisfies one of these; the composition root wires them by interface.

// EventBus is the minimal pub/sub contract the orchestrator and every
// downstream collaborator depend on.
type EventBus interface {
	Publish(topic string, payload any)
	Subscribe(topic, consumer string) <-chan any
	UnsubscribeAll(topic string)
}

// PersistenceSink receives closed-candle, signal, and trade events for
// durable storage. Implementations (Redis, SQLite) subscribe to the bus
// rather than being called directly, preserving the one-way notification
// design: no core component holds a reference to a sink.
type PersistenceSink interface {
	Run(ctx context.Context)
	Close() error
}

// SignalFilter is the pluggable predicate over a freshly computed signal,
// standing in for an external ML filter. Returning false suppresses
// publication of the signal.
type SignalFilter func(Signal) bool

// PassThroughFilter accepts every signal; it is the default when no
// external filter is configured.
func PassThroughFilter(Signal) bool { return true }
