package record

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"serial-monitor/internal/telemetry"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS samples (
  session_id TEXT NOT NULL,
  ts_ms INTEGER NOT NULL,
  channel INTEGER NOT NULL,
  value REAL
);
CREATE INDEX IF NOT EXISTS samples_session_ts ON samples(session_id, ts_ms);
`

const insertSample = `INSERT INTO samples (session_id, ts_ms, channel, value) VALUES (?, ?, ?, ?)`

// SQLiteWriter stores samples in a local SQLite database, one row per
// channel value.
type SQLiteWriter struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", pragma, err)
		}
	}
	w, err := NewSQLiteWriter(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// NewSQLiteWriter wraps an open database and creates the samples table.
func NewSQLiteWriter(db *sql.DB) (*SQLiteWriter, error) {
	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("create samples table: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

// Write inserts a single sample.
func (w *SQLiteWriter) Write(s telemetry.Sample) error {
	return w.WriteBatch([]telemetry.Sample{s})
}

// WriteBatch inserts samples in one transaction.
func (w *SQLiteWriter) WriteBatch(rows []telemetry.Sample) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSample)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range rows {
		ts := r.Timestamp.UnixMilli()
		for ch, v := range r.Values {
			if _, err := stmt.ExecContext(ctx, r.SessionID, ts, ch, sqlValue(v)); err != nil {
				tx.Rollback()
				return fmt.Errorf("insert sample: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// sqlValue stores NaN and ±Inf as NULL.
func sqlValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// Count returns the number of stored channel values for a session.
func (w *SQLiteWriter) Count(session string) (int, error) {
	var n int
	err := w.db.QueryRow(`SELECT COUNT(*) FROM samples WHERE session_id = ?`, session).Scan(&n)
	return n, err
}

// Close closes the database.
func (w *SQLiteWriter) Close() error {
	return w.db.Close()
}
