// Package otel publishes authform counters and the lookup latency histogram
// as OpenTelemetry observable instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per cumulative histogram bucket. A single callback
// reads [authform.Engine.MetricsSnapshot] on each collection cycle. Callers
// own the MeterProvider.
package otel
