package metrics

import "github.com/kilianp07/courier-dispatch/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusEnabled exposes the default registry on /metrics.
	PrometheusEnabled bool `json:"prometheus_enabled" yaml:"prometheus_enabled"`
}
