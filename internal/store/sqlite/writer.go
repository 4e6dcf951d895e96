// Package sqlite persists engine events to a local SQLite database. It
// is a PersistenceSink: it subscribes to the bus itself rather than
// being driven by an explicit channel argument, batching high-volume
// topics (candles) and writing low-volume ones (signals, trades)
// immediately.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"indexpulse/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Config configures the SQLite sink.
type Config struct {
	DBPath string
}

// Writer is a single-goroutine SQLite sink with transaction batching
// for candles and timeframe candles.
type Writer struct {
	db  *sql.DB
	bus model.EventBus
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New opens the database, creates the schema if absent, and returns a
// Writer subscribing to bus on Run.
func New(cfg Config, bus model.EventBus) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite: opened database", "path", cfg.DBPath)
	return &Writer{db: db, bus: bus}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol     TEXT    NOT NULL,
			open_time  REAL    NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			tick_count INTEGER NOT NULL,
			PRIMARY KEY (symbol, open_time)
		);

		CREATE TABLE IF NOT EXISTS tf_candles (
			symbol    TEXT    NOT NULL,
			tf        INTEGER NOT NULL,
			open_time REAL    NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			count     INTEGER NOT NULL,
			PRIMARY KEY (symbol, tf, open_time)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id               TEXT PRIMARY KEY,
			symbol           TEXT NOT NULL,
			direction        TEXT NOT NULL,
			entry            REAL NOT NULL,
			stop_loss        REAL NOT NULL,
			take_profit      REAL NOT NULL,
			rr_realized      REAL NOT NULL,
			generated_at     REAL NOT NULL,
			candle_timestamp REAL NOT NULL,
			conditions       TEXT NOT NULL,
			confidence       INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS trades (
			id           TEXT PRIMARY KEY,
			symbol       TEXT NOT NULL,
			direction    TEXT NOT NULL,
			signal_id    TEXT NOT NULL,
			status       TEXT NOT NULL,
			entry_price  REAL NOT NULL,
			close_price  REAL NOT NULL,
			open_ts      REAL NOT NULL,
			close_ts     REAL NOT NULL,
			duration_sec REAL NOT NULL,
			pnl_percent  REAL NOT NULL
		);
	`)
	return err
}

// Run subscribes to candle, tf_candle, signal, and trade_closed topics
// and persists each until ctx is cancelled.
func (w *Writer) Run(ctx context.Context) {
	candles := w.bus.Subscribe("candle", "sqlite")
	tfCandles := w.bus.Subscribe("tf_candle", "sqlite")
	signals := w.bus.Subscribe("signal", "sqlite")
	trades := w.bus.Subscribe("trade_closed", "sqlite")

	candleBatch := make([]model.Candle, 0, defaultBatchSize)
	tfBatch := make([]model.TFCandle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(candleBatch) > 0 {
			if err := w.insertCandleBatch(candleBatch); err != nil {
				slog.Warn("sqlite: candle batch insert failed", "error", err)
			}
			candleBatch = candleBatch[:0]
		}
		if len(tfBatch) > 0 {
			if err := w.insertTFBatch(tfBatch); err != nil {
				slog.Warn("sqlite: tf_candle batch insert failed", "error", err)
			}
			tfBatch = tfBatch[:0]
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case v, ok := <-candles:
			if !ok {
				continue
			}
			candleBatch = append(candleBatch, v.(model.Candle))
			if len(candleBatch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case v, ok := <-tfCandles:
			if !ok {
				continue
			}
			tfBatch = append(tfBatch, v.(model.TFCandle))
			if len(tfBatch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case v, ok := <-signals:
			if !ok {
				continue
			}
			if err := w.insertSignal(v.(model.Signal)); err != nil {
				slog.Warn("sqlite: signal insert failed", "error", err)
			}

		case v, ok := <-trades:
			if !ok {
				continue
			}
			if err := w.insertTrade(v.(model.SimulatedTrade)); err != nil {
				slog.Warn("sqlite: trade insert failed", "error", err)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (w *Writer) insertCandleBatch(candles []model.Candle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, open_time, open, high, low, close, tick_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.Symbol, c.OpenTime, c.Open, c.High, c.Low, c.Close, c.TickCount); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (w *Writer) insertTFBatch(candles []model.TFCandle) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO tf_candles (symbol, tf, open_time, open, high, low, close, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.Symbol, c.TF, c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Count); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (w *Writer) insertSignal(s model.Signal) error {
	conditions := ""
	for i, c := range s.Conditions {
		if i > 0 {
			conditions += ","
		}
		conditions += c
	}
	_, err := w.db.Exec(`
		INSERT OR REPLACE INTO signals (id, symbol, direction, entry, stop_loss, take_profit, rr_realized, generated_at, candle_timestamp, conditions, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Symbol, string(s.Direction), s.Entry, s.StopLoss, s.TakeProfit, s.RRRealized, s.GeneratedAt, s.CandleTimestamp, conditions, s.Confidence)
	return err
}

func (w *Writer) insertTrade(t model.SimulatedTrade) error {
	_, err := w.db.Exec(`
		INSERT OR REPLACE INTO trades (id, symbol, direction, signal_id, status, entry_price, close_price, open_ts, close_ts, duration_sec, pnl_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Symbol, string(t.Direction), t.SignalID, string(t.Status), t.EntryPrice, t.ClosePrice, t.OpenTS, t.CloseTS, t.DurationSec, t.PnLPercent)
	return err
}

// Close closes the database. Satisfies model.PersistenceSink.
func (w *Writer) Close() error {
	return w.db.Close()
}
