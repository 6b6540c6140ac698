// Package poller implements the Poll Scheduler component.
//
// The Poll Scheduler:
//   - Loads instrument metadata once at startup (failure is fatal)
//   - Refreshes the portfolio on a fixed interval with an enforced floor
//   - Applies each successful refresh to the cache, then publishes it
//   - Never runs two upstream fetches at the same time
package poller
