package metrics

import (
	"time"
)

// AssignmentRunEvent summarises one engine run.
type AssignmentRunEvent struct {
	RunID       string
	Strategy    string
	Orders      int
	Couriers    int
	PickupSites int
	Assigned    int
	// Skipped counts unassigned orders per skip reason.
	Skipped  map[string]int
	Duration time.Duration
	Time     time.Time
}

// SkippedTotal returns the number of skipped orders over all reasons.
func (e AssignmentRunEvent) SkippedTotal() int {
	n := 0
	for _, c := range e.Skipped {
		n += c
	}
	return n
}

// MetricsSink records assignment runs for observability purposes.
type MetricsSink interface {
	RecordAssignmentRun(ev AssignmentRunEvent) error
}

// AssignmentRecord is one order to courier decision.
type AssignmentRecord struct {
	RunID     string
	OrderID   string
	CourierID string
	Score     float64
	Time      time.Time
}

// AssignmentRecorder is implemented by sinks able to record individual
// assignments.
type AssignmentRecorder interface {
	RecordAssignments(recs []AssignmentRecord) error
}

// ReliabilityLookupEvent describes a reliability enrichment call.
type ReliabilityLookupEvent struct {
	RunID     string
	Requested int
	Found     int
	Latency   time.Duration
	Error     string
	Time      time.Time
}

// ReliabilityLookupRecorder records reliability enrichment calls.
type ReliabilityLookupRecorder interface {
	RecordReliabilityLookup(ev ReliabilityLookupEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignmentRun(AssignmentRunEvent) error          { return nil }
func (NopSink) RecordAssignments([]AssignmentRecord) error            { return nil }
func (NopSink) RecordReliabilityLookup(ReliabilityLookupEvent) error { return nil }
