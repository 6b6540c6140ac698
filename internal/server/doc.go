// Package server exposes the HTTP surface of the stock feed.
//
// Routes:
//   - GET /         health and status summary
//   - GET /stocks   full price snapshot (alias: /prices)
//   - GET /ws       price stream (WebSocket upgrade)
//   - GET /metrics  Prometheus exposition
//
// Every route passes through recovery, request logging, CORS and per-client
// rate limiting. The client IP used for rate limiting and logs is taken from
// the header chosen by the configured proxy preset.
package server
