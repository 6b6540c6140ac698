// Package model defines shared data types used across the stock feed.
//
// Conventions:
//   - Prices: decimal.Decimal, serialized as JSON numbers
//   - Timestamps: time.Time in memory, int64 milliseconds since Unix epoch on the wire
//   - IDs: raw exchange-qualified tickers upstream, display symbols downstream
package model
