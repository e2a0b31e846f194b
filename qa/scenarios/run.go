package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/courier-dispatch/core/dispatch"
	coremetrics "github.com/kilianp07/courier-dispatch/core/metrics"
	"github.com/kilianp07/courier-dispatch/infra/logger"
	"github.com/kilianp07/courier-dispatch/infra/metrics"
	"github.com/kilianp07/courier-dispatch/internal/eventbus"
)

// RunScenario assigns the scenario snapshot through the linear scan and the
// spatial index and checks both against the expected outcome.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	base := sc.Dispatch.Apply(dispatch.DefaultConfig())

	linear := base
	linear.IndexThreshold = 0
	indexed := base
	indexed.IndexThreshold = 1

	for name, cfg := range map[string]dispatch.Config{"linear": linear, "indexed": indexed} {
		t.Run(name, func(t *testing.T) {
			run := assign(t, cfg, sc)
			check(t, sc, run)
		})
	}
}

func assign(t *testing.T, cfg dispatch.Config, sc *Scenario) dispatch.Run {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	engine, err := dispatch.NewEngine(cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	bus := eventbus.NewTyped[dispatch.Run]()
	defer bus.Close()
	sub := bus.Subscribe()

	mgr, err := dispatch.NewAssignmentManager(engine, sink, bus, nil, logger.NopLogger{})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	run, err := mgr.Assign(context.Background(), sc.Snapshot.ToModel())
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	published := <-sub
	if published.ID != run.ID {
		t.Errorf("published run %s, returned %s", published.ID, run.ID)
	}
	if n := testutil.ToFloat64(sink.(*metrics.PromSink).Runs(run.Strategy())); n != 1 {
		t.Errorf("expected 1 run recorded, got %v", n)
	}
	return run
}

func check(t *testing.T, sc *Scenario, run dispatch.Run) {
	t.Helper()
	got := make(map[string]string, len(run.Result.Assignments))
	scores := make(map[string]float64, len(run.Result.Assignments))
	for _, a := range run.Result.Assignments {
		got[a.OrderID] = a.CourierID
		scores[a.OrderID] = a.Score
	}
	if len(got) != len(sc.Expected.Assignments) {
		t.Errorf("expected %d assignments, got %d: %v", len(sc.Expected.Assignments), len(got), got)
	}
	for order, courier := range sc.Expected.Assignments {
		if got[order] != courier {
			t.Errorf("order %s: expected courier %q, got %q", order, courier, got[order])
		}
	}
	for order, want := range sc.Expected.Scores {
		if diff := scores[order] - want; diff > 0.01 || diff < -0.01 {
			t.Errorf("order %s: expected score %.3f, got %.3f", order, want, scores[order])
		}
	}

	skipped := make(map[string]string, len(run.Result.Skipped))
	for _, s := range run.Result.Skipped {
		skipped[s.OrderID] = s.Reason.String()
	}
	if len(skipped) != len(sc.Expected.Skipped) {
		t.Errorf("expected %d skipped, got %d: %v", len(sc.Expected.Skipped), len(skipped), skipped)
	}
	for order, reason := range sc.Expected.Skipped {
		if skipped[order] != reason {
			t.Errorf("order %s: expected skip %q, got %q", order, reason, skipped[order])
		}
	}
}
