package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"indexpulse/internal/model"
)

// Reader provides read-only access to SQLite for REST history queries.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	return &Reader{db: db}, nil
}

// ReadTFCandles returns TF candles for symbol/tf ordered by open_time
// ascending, most recent `limit` candles.
func (r *Reader) ReadTFCandles(symbol string, tf int, limit int) ([]model.TFCandle, error) {
	rows, err := r.db.Query(`
		SELECT symbol, tf, open_time, open, high, low, close, count
		FROM tf_candles
		WHERE symbol = ? AND tf = ?
		ORDER BY open_time DESC
		LIMIT ?
	`, symbol, tf, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tf_candles: %w", err)
	}
	defer rows.Close()

	var candles []model.TFCandle
	for rows.Next() {
		var c model.TFCandle
		if err := rows.Scan(&c.Symbol, &c.TF, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Count); err != nil {
			return nil, fmt.Errorf("sqlite scan tf_candles: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
