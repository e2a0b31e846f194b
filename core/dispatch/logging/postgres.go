package logging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS assignment_runs (
	id TEXT PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	record JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS assignment_runs_ts ON assignment_runs (ts);
CREATE INDEX IF NOT EXISTS assignment_runs_record ON assignment_runs USING GIN (record jsonb_path_ops);
`

// PostgresStore persists logs as JSONB rows in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append inserts the record.
func (s *PostgresStore) Append(ctx context.Context, rec LogRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO assignment_runs (id, ts, record) VALUES ($1, $2, $3)`,
		rec.ID, rec.Timestamp, b)
	return err
}

// Query returns records matching q ordered by time. Order and courier
// filters use JSONB containment.
func (s *PostgresStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var args []any
	query := `SELECT record FROM assignment_runs WHERE TRUE`
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !q.Start.IsZero() {
		query += ` AND ts >= ` + arg(q.Start)
	}
	if !q.End.IsZero() {
		query += ` AND ts <= ` + arg(q.End)
	}
	if q.OrderID != "" {
		p := arg(containment("orderId", q.OrderID))
		query += fmt.Sprintf(` AND (record->'assignments' @> %[1]s::jsonb OR record->'skipped' @> %[1]s::jsonb)`, p)
	}
	if q.CourierID != "" {
		query += ` AND record->'assignments' @> ` + arg(containment("courierId", q.CourierID)) + `::jsonb`
	}
	query += ` ORDER BY ts`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []LogRecord{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r LogRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// containment builds the JSON array [{key: value}] used with @>.
func containment(key, value string) string {
	b, _ := json.Marshal([]map[string]string{{key: value}})
	return string(b)
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
