// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Refresh cycle outcomes and latency
//   - Cached symbol and instrument counts
//   - Open streaming connections and published message counts
//   - Protocol errors from streaming clients
//
// A nil *Metrics is valid and records nothing.
package metrics
