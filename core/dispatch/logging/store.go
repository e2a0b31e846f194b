// Package logging persists an audit record of every assignment run and
// answers time-range and order/courier queries over it.
package logging

import (
	"context"
	"time"

	"github.com/kilianp07/courier-dispatch/core/dispatch"
	"github.com/kilianp07/courier-dispatch/core/model"
)

// LogRecord captures one assignment run and its result.
type LogRecord struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Orders      int                `json:"orders"`
	Couriers    int                `json:"couriers"`
	PickupSites int                `json:"pickup_sites"`
	Indexed     bool               `json:"indexed"`
	DurationMs  float64            `json:"duration_ms"`
	Assignments []model.Assignment `json:"assignments"`
	Skipped     []model.Skip       `json:"skipped"`
}

// FromRun converts a completed run into a log record.
func FromRun(run dispatch.Run) LogRecord {
	rec := LogRecord{
		ID:          run.ID.String(),
		Timestamp:   run.Timestamp.UTC(),
		Orders:      run.Orders,
		Couriers:    run.Couriers,
		PickupSites: run.PickupSites,
		Indexed:     run.Result.Indexed,
		DurationMs:  float64(run.Duration.Microseconds()) / 1000,
		Assignments: run.Result.Assignments,
		Skipped:     run.Result.Skipped,
	}
	if rec.Assignments == nil {
		rec.Assignments = []model.Assignment{}
	}
	if rec.Skipped == nil {
		rec.Skipped = []model.Skip{}
	}
	return rec
}

// LogQuery defines filters for retrieving records. Zero values match
// everything.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	OrderID   string
	CourierID string
}

// Matches reports whether rec passes every filter of q. An order matches
// when it was assigned or skipped in the run.
func (q LogQuery) Matches(rec LogRecord) bool {
	if !q.Start.IsZero() && rec.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && rec.Timestamp.After(q.End) {
		return false
	}
	if q.OrderID != "" && !rec.hasOrder(q.OrderID) {
		return false
	}
	if q.CourierID != "" && !rec.hasCourier(q.CourierID) {
		return false
	}
	return true
}

func (r LogRecord) hasOrder(id string) bool {
	for _, a := range r.Assignments {
		if a.OrderID == id {
			return true
		}
	}
	for _, s := range r.Skipped {
		if s.OrderID == id {
			return true
		}
	}
	return false
}

func (r LogRecord) hasCourier(id string) bool {
	for _, a := range r.Assignments {
		if a.CourierID == id {
			return true
		}
	}
	return false
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) {
	return []LogRecord{}, nil
}
func (NopStore) Close() error { return nil }
