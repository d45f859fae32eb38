// Package metrics collects per-run build counters and writes them in the
// Prometheus text format, for pickup by a node exporter textfile collector.
package metrics
