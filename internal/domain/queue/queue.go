// Package queue selects and orders the items a learner should review next.
//
// Everything here is a pure function over snapshots. The review service loads
// candidates from the store and passes them through SelectDue and Backfill.
package queue

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
)

// SelectDue returns the IDs of records due at asOf, most overdue first, with
// weaker mastery levels first among equal due times. Each item appears once
// and at most limit IDs are returned.
func SelectDue(records []domain.MasteryRecord, asOf time.Time, limit int) []uuid.UUID {
	if limit <= 0 {
		return nil
	}

	due := make([]domain.MasteryRecord, 0, len(records))
	for _, rec := range records {
		if rec.IsDue(asOf) {
			due = append(due, rec)
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.NextReviewAt.Equal(b.NextReviewAt) {
			return a.NextReviewAt.Before(b.NextReviewAt)
		}
		if a.MasteryLevel != b.MasteryLevel {
			return a.MasteryLevel < b.MasteryLevel
		}
		return a.ItemID.String() < b.ItemID.String()
	})

	seen := make(map[uuid.UUID]struct{}, len(due))
	ids := make([]uuid.UUID, 0, min(limit, len(due)))
	for _, rec := range due {
		if len(ids) == limit {
			break
		}
		if _, dup := seen[rec.ItemID]; dup {
			continue
		}
		seen[rec.ItemID] = struct{}{}
		ids = append(ids, rec.ItemID)
	}
	return ids
}

// BackfillQuota returns how many NEW items may be appended after dueCount due
// items. Backfill only uses free slots under limit and never exceeds what is
// left of the daily goal after learnedToday items already started today.
func BackfillQuota(dueCount, limit, dailyGoal, learnedToday int) int {
	free := limit - dueCount
	remainingGoal := dailyGoal - learnedToday
	quota := min(free, remainingGoal)
	if quota < 0 {
		return 0
	}
	return quota
}

// Backfill appends fresh item IDs to due without displacing or duplicating
// any of them, stopping once limit IDs are present.
func Backfill(due []uuid.UUID, fresh []uuid.UUID, limit int) []uuid.UUID {
	out := make([]uuid.UUID, 0, limit)
	seen := make(map[uuid.UUID]struct{}, len(due)+len(fresh))
	for _, id := range due {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range fresh {
		if len(out) >= limit {
			break
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
