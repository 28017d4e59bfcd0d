// Package metrics defines the events emitted by acceptance runs and the sinks
// that record them. Sinks like PromSink and InfluxSink live in infra/metrics
// and register themselves by name; NewMetricsSink builds them from
// configuration and wraps several in a MultiSink automatically.
package metrics
