package metrics

import (
	coremetrics "github.com/kilianp07/courier-dispatch/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records assignment runs in Prometheus metrics.
type PromSink struct {
	runs      *prometheus.CounterVec
	scores    prometheus.Histogram
	fleet     prometheus.Gauge
	lookups   *prometheus.CounterVec
	unmatched prometheus.Gauge
}

// NewPromSink registers assignment metrics on the default Prometheus registerer.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_runs_total",
		Help: "Total number of assignment runs",
	}, []string{"strategy"})
	scores := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "assignment_score",
		Help:    "Score of the winning courier per assignment",
		Buckets: prometheus.LinearBuckets(-50, 10, 16),
	})
	fleet := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "assignment_fleet_size",
		Help: "Number of couriers in the latest snapshot",
	})
	lookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reliability_lookups_total",
		Help: "Reliability enrichment calls by outcome",
	}, []string{"outcome"})
	unmatched := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "assignment_unmatched_orders",
		Help: "Number of orders skipped in the latest run",
	})

	var err error
	if runs, err = register(reg, runs); err != nil {
		return nil, err
	}
	if scores, err = register(reg, scores); err != nil {
		return nil, err
	}
	if fleet, err = register(reg, fleet); err != nil {
		return nil, err
	}
	if lookups, err = register(reg, lookups); err != nil {
		return nil, err
	}
	if unmatched, err = register(reg, unmatched); err != nil {
		return nil, err
	}
	return &PromSink{runs: runs, scores: scores, fleet: fleet, lookups: lookups, unmatched: unmatched}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordAssignmentRun counts the run and updates the fleet gauges.
func (s *PromSink) RecordAssignmentRun(ev coremetrics.AssignmentRunEvent) error {
	s.runs.WithLabelValues(ev.Strategy).Inc()
	s.fleet.Set(float64(ev.Couriers))
	s.unmatched.Set(float64(ev.SkippedTotal()))
	return nil
}

// RecordAssignments observes the winning scores.
func (s *PromSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.scores.Observe(r.Score)
	}
	return nil
}

// RecordReliabilityLookup counts lookups by outcome.
func (s *PromSink) RecordReliabilityLookup(ev coremetrics.ReliabilityLookupEvent) error {
	outcome := "ok"
	if ev.Error != "" {
		outcome = "error"
	}
	s.lookups.WithLabelValues(outcome).Inc()
	return nil
}

// Runs returns the run counter for strategy.
func (s *PromSink) Runs(strategy string) prometheus.Counter {
	return s.runs.WithLabelValues(strategy)
}
