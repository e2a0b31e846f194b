// Package metrics defines the sink interfaces used to record assignment
// runs. Sinks like PromSink and InfluxSink live in infra/metrics and register
// themselves with the factory; NewMetricsSink returns a MultiSink
// automatically when multiple sinks are configured.
package metrics
