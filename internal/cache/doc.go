// Package cache holds the in-memory portfolio price state.
//
// The cache has exactly one writer (the poll scheduler) and any number of
// readers. Both the instrument currency map and the snapshot map are
// immutable once published; every refresh builds a new map and swaps it in
// with a single atomic pointer store, so readers observe either the previous
// refresh or the next one, never a mix.
package cache
