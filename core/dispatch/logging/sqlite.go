package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists logs to a SQLite database. Orders and couriers of
// each run are indexed in a side table so filters run in SQL.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS assignment_runs (
	id TEXT PRIMARY KEY,
	ts INTEGER NOT NULL,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS assignment_runs_ts ON assignment_runs (ts);
CREATE TABLE IF NOT EXISTS run_orders (
	run_id TEXT NOT NULL REFERENCES assignment_runs (id),
	order_id TEXT NOT NULL,
	courier_id TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS run_orders_order ON run_orders (order_id);
CREATE INDEX IF NOT EXISTS run_orders_courier ON run_orders (courier_id);
`

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps in-memory databases alive and serialises writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record and its order index in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec LogRecord) (err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO assignment_runs (id, ts, record) VALUES (?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), string(b)); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_orders (run_id, order_id, courier_id) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, a := range rec.Assignments {
		if _, err = stmt.ExecContext(ctx, rec.ID, a.OrderID, a.CourierID); err != nil {
			return err
		}
	}
	for _, sk := range rec.Skipped {
		if _, err = stmt.ExecContext(ctx, rec.ID, sk.OrderID, ""); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns records matching q ordered by time.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var args []any
	query := `SELECT record FROM assignment_runs WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.OrderID != "" {
		query += ` AND id IN (SELECT run_id FROM run_orders WHERE order_id = ?)`
		args = append(args, q.OrderID)
	}
	if q.CourierID != "" {
		query += ` AND id IN (SELECT run_id FROM run_orders WHERE courier_id = ?)`
		args = append(args, q.CourierID)
	}
	query += ` ORDER BY ts`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []LogRecord{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r LogRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
