// Package prometheus exposes donorhub engine metrics through client_golang.
//
// [PrometheusExporter] is a prometheus.Collector that reads
// [donorhub.Engine.MetricsSnapshot] on every scrape. Counter names are
// donorhub_*_total; the single histogram is donorhub_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global default registry. Callers use Register or Handler.
//   - Mutate engine state.
package prometheus
