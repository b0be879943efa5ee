// Package service holds what the application services share: the service
// error type and the outbox that defers event emission until commit.
//
// The use cases live in subpackages: review (interval engine and due queue),
// session (session aggregator) and reward (streaks, check-ins and points).
// Each mutation runs as one store.Transactor unit of work.
package service
