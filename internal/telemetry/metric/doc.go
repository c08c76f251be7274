// Package metric provides Prometheus metrics for soketi.
//
// This package implements metrics collection and exposition:
//
//   - prometheus.go: metrics registry, adapter hooks and HTTP handler
//   - collector.go: live per-app gauges read from the namespace registry
//
// Metrics include:
//
//   - Cluster query counters and resolve latency histograms
//   - Connection and channel gauges per app
//   - HTTP API request counters
//
// Metrics are exposed at /metrics in Prometheus format, on a separate
// listener from the public API.
package metric
