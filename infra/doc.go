// Package infra contains technical adapters: the zerolog logger, the
// Prometheus and InfluxDB metrics sinks, the Sentry monitor and the
// reliability sources. These packages should depend only on the
// interfaces defined in the core packages.
package infra
