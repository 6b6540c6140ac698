// Package api provides the Trading 212 REST client.
//
// Endpoints:
//   - Live: https://live.trading212.com
//   - Demo: https://demo.trading212.com
//
// Only two read-only calls are used: equity instrument metadata and the
// current equity portfolio. Requests authenticate with HTTP Basic auth built
// from the API key and secret.
package api
