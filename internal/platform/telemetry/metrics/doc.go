// Package metrics provides operational metrics for the chronicle runtime.
//
// Metrics are registered on a caller-supplied Prometheus registerer so tests
// can use an isolated registry, and served through Handler in the Prometheus
// text format.
//
// # Metric Categories
//
//   - Ticks: advance attempts by outcome and their latency
//   - Pipeline: facts detected by kind, notifications ingested by priority,
//     duplicates ignored, evictions
//   - Alerts: toasts and breaking bulletins promoted
//   - Presentation: live-feed websocket clients
package metrics
