// Package domain defines the entities the spaced repetition scheduler operates
// on: mastery records, study sessions, streaks, learner accounts and check-ins.
//
// Entities here carry validation and pure state transitions only. They never
// touch storage; the service layer loads them, applies a transition and saves
// the returned snapshot inside a single transaction.
package domain
