package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/courier-dispatch/core/logger"
	"github.com/kilianp07/courier-dispatch/core/metrics"
	"github.com/kilianp07/courier-dispatch/core/model"
	"github.com/kilianp07/courier-dispatch/internal/eventbus"
)

// ReliabilitySource supplies reliability scores for couriers the request
// table does not cover. Missing couriers are simply absent from the map.
type ReliabilitySource interface {
	Scores(ctx context.Context, courierIDs []string) (map[string]float64, error)
}

// AssignmentManager wraps the engine with reliability enrichment, metrics,
// logging and run events.
type AssignmentManager struct {
	engine *Engine
	sink   metrics.MetricsSink
	bus    *eventbus.TypedBus[Run]
	source ReliabilitySource
	logger logger.Logger
	now    func() time.Time
}

// NewAssignmentManager creates a manager. sink, bus, source and log are
// optional.
func NewAssignmentManager(engine *Engine, sink metrics.MetricsSink, bus *eventbus.TypedBus[Run], source ReliabilitySource, log logger.Logger) (*AssignmentManager, error) {
	if engine == nil {
		return nil, errors.New("dispatch: nil engine provided to NewAssignmentManager")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &AssignmentManager{
		engine: engine,
		sink:   sink,
		bus:    bus,
		source: source,
		logger: log,
		now:    time.Now,
	}, nil
}

// Engine returns the underlying engine.
func (m *AssignmentManager) Engine() *Engine { return m.engine }

// Assign runs the engine on snap. The only error is a context that is already
// done; incomplete data shows up as skipped orders instead.
func (m *AssignmentManager) Assign(ctx context.Context, snap model.Snapshot) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, fmt.Errorf("assign: %w", err)
	}
	run := Run{
		ID:          uuid.New(),
		Timestamp:   m.now(),
		Orders:      len(snap.Orders),
		Couriers:    len(snap.Couriers),
		PickupSites: len(snap.PickupSites),
	}
	snap.Reliability = m.enrich(ctx, run.ID, snap)

	start := time.Now()
	run.Result = m.engine.Assign(snap)
	run.Duration = time.Since(start)

	m.observe(run)
	m.record(run)
	if m.bus != nil {
		m.bus.Publish(run)
	}
	return run, nil
}

// enrich returns a copy of the request table completed with scores from the
// reliability source. Request values always win. Source failures only cost
// the missing couriers their stored score.
func (m *AssignmentManager) enrich(ctx context.Context, runID uuid.UUID, snap model.Snapshot) model.ReliabilityTable {
	if m.source == nil {
		return snap.Reliability
	}
	var missing []string
	seen := make(map[string]struct{}, len(snap.Couriers))
	for _, c := range snap.Couriers {
		if _, ok := snap.Reliability[c.ID]; ok {
			continue
		}
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		missing = append(missing, c.ID)
	}
	if len(missing) == 0 {
		return snap.Reliability
	}

	start := time.Now()
	scores, err := m.source.Scores(ctx, missing)
	ev := metrics.ReliabilityLookupEvent{
		RunID:     runID.String(),
		Requested: len(missing),
		Found:     len(scores),
		Latency:   time.Since(start),
		Time:      m.now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if rec, ok := m.sink.(metrics.ReliabilityLookupRecorder); ok {
		if rerr := rec.RecordReliabilityLookup(ev); rerr != nil {
			m.logger.Errorf("reliability lookup metrics error: %v", rerr)
		}
	}
	if err != nil {
		m.logger.Warnf("reliability lookup failed, using defaults for %d couriers: %v", len(missing), err)
		return snap.Reliability
	}

	table := make(model.ReliabilityTable, len(snap.Reliability)+len(scores))
	for id, s := range snap.Reliability {
		table[id] = s
	}
	for _, id := range missing {
		if s, ok := scores[id]; ok {
			table[id] = s
		}
	}
	return table
}

// observe updates the process-level collectors.
func (m *AssignmentManager) observe(run Run) {
	runDuration.WithLabelValues(run.Strategy()).Observe(run.Duration.Seconds())
	ordersAssigned.Add(float64(len(run.Result.Assignments)))
	for reason, n := range run.Result.SkippedByReason() {
		ordersSkipped.WithLabelValues(reason.String()).Add(float64(n))
	}
}

// record forwards the run to the metrics sink and logs a summary.
func (m *AssignmentManager) record(run Run) {
	skipped := make(map[string]int, 2)
	for reason, n := range run.Result.SkippedByReason() {
		skipped[reason.String()] = n
	}
	ev := metrics.AssignmentRunEvent{
		RunID:       run.ID.String(),
		Strategy:    run.Strategy(),
		Orders:      run.Orders,
		Couriers:    run.Couriers,
		PickupSites: run.PickupSites,
		Assigned:    len(run.Result.Assignments),
		Skipped:     skipped,
		Duration:    run.Duration,
		Time:        run.Timestamp,
	}
	if err := m.sink.RecordAssignmentRun(ev); err != nil {
		m.logger.Errorf("metrics error: %v", err)
	}
	if rec, ok := m.sink.(metrics.AssignmentRecorder); ok && len(run.Result.Assignments) > 0 {
		recs := make([]metrics.AssignmentRecord, len(run.Result.Assignments))
		for i, a := range run.Result.Assignments {
			recs[i] = metrics.AssignmentRecord{
				RunID:     ev.RunID,
				OrderID:   a.OrderID,
				CourierID: a.CourierID,
				Score:     a.Score,
				Time:      run.Timestamp,
			}
		}
		if err := rec.RecordAssignments(recs); err != nil {
			m.logger.Errorf("assignment metrics error: %v", err)
		}
	}

	for _, s := range run.Result.Skipped {
		m.logger.Debugw("order skipped", map[string]any{
			"run_id":   ev.RunID,
			"order_id": s.OrderID,
			"reason":   s.Reason.String(),
		})
	}
	m.logger.Infow("assignment run completed", map[string]any{
		"run_id":      ev.RunID,
		"strategy":    ev.Strategy,
		"orders":      run.Orders,
		"couriers":    run.Couriers,
		"assigned":    ev.Assigned,
		"skipped":     len(run.Result.Skipped),
		"duration_ms": float64(run.Duration.Microseconds()) / 1000,
	})
}
