// Package metrics exposes Prometheus collectors for the live quote client.
//
// Collectors are registered with the default registry on import and served
// by promhttp.Handler() in cmd/livequote. Stream metrics carry a "channel"
// label so several clients can share one process.
package metrics
