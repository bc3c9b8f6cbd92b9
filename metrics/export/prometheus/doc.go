// Package prometheus renders authform metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] reads from an [authform.Engine] and exposes an
// [http.Handler]. Counters are named authform_*_total and the lookup latency
// histogram is authform_lookup_latency_seconds. Callers may append their own
// gauges with AddGauge.
package prometheus
