package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runDuration     *prometheus.HistogramVec
	ordersAssigned  prometheus.Counter
	ordersSkipped   *prometheus.CounterVec
	indexQueries    prometheus.Counter
	indexCandidates prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, prometheus.Counter, *prometheus.CounterVec, prometheus.Counter, prometheus.Histogram) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_assignment_run_duration_seconds",
			Help:    "Duration of assignment runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)
	assigned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_orders_assigned_total",
			Help: "Number of orders that received a courier",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_orders_skipped_total",
			Help: "Number of orders left without a courier",
		},
		[]string{"reason"},
	)
	queries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_index_queries_total",
			Help: "Number of spatial index candidate queries",
		},
	)
	cands := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_index_candidates",
			Help:    "Couriers returned per spatial index query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	return dur, assigned, skipped, queries, cands
}

func init() {
	runDuration, ordersAssigned, ordersSkipped, indexQueries, indexCandidates = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runDuration, ordersAssigned, ordersSkipped, indexQueries, indexCandidates)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	runDuration, ordersAssigned, ordersSkipped, indexQueries, indexCandidates = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// strategyLabel names the scan used by a run.
func strategyLabel(indexed bool) string {
	if indexed {
		return "indexed"
	}
	return "linear"
}
