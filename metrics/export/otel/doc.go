// Package otel exposes donorhub engine metrics as OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and a bucket gauge carrying an "le" attribute per bound. A single callback
// reads [donorhub.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
