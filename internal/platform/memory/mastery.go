package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

type masteryStore struct {
	st *state
}

var _ store.MasteryRecordStore = (*masteryStore)(nil)

func (m *masteryStore) Create(_ context.Context, rec *domain.MasteryRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	key := masteryKey{rec.UserID, rec.ItemID}
	if _, ok := m.st.mastery[key]; ok {
		return store.ErrMasteryRecordExists
	}
	put(m.st, m.st.mastery, key, rec.Clone())
	return nil
}

func (m *masteryStore) Get(_ context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error) {
	rec, ok := m.st.mastery[masteryKey{userID, itemID}]
	if !ok {
		return nil, store.ErrMasteryRecordNotFound
	}
	return rec.Clone(), nil
}

// GetForUpdate needs no locking: the whole unit of work holds the store lock.
func (m *masteryStore) GetForUpdate(ctx context.Context, userID, itemID uuid.UUID) (*domain.MasteryRecord, error) {
	return m.Get(ctx, userID, itemID)
}

func (m *masteryStore) GetOrCreateForUpdate(
	ctx context.Context,
	seed *domain.MasteryRecord,
) (*domain.MasteryRecord, bool, error) {
	rec, err := m.Get(ctx, seed.UserID, seed.ItemID)
	if err == nil {
		return rec, false, nil
	}
	if err := m.Create(ctx, seed); err != nil {
		return nil, false, err
	}
	return seed.Clone(), true, nil
}

func (m *masteryStore) Update(_ context.Context, rec *domain.MasteryRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	key := masteryKey{rec.UserID, rec.ItemID}
	if _, ok := m.st.mastery[key]; !ok {
		return store.ErrMasteryRecordNotFound
	}
	put(m.st, m.st.mastery, key, rec.Clone())
	return nil
}

func (m *masteryStore) ListDue(
	_ context.Context,
	userID uuid.UUID,
	asOf time.Time,
	limit int,
) ([]domain.MasteryRecord, error) {
	var due []domain.MasteryRecord
	for key, rec := range m.st.mastery {
		if key.userID == userID && rec.IsDue(asOf) {
			due = append(due, *rec.Clone())
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if !a.NextReviewAt.Equal(b.NextReviewAt) {
			return a.NextReviewAt.Before(b.NextReviewAt)
		}
		if a.MasteryLevel != b.MasteryLevel {
			return a.MasteryLevel < b.MasteryLevel
		}
		return a.ItemID.String() < b.ItemID.String()
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *masteryStore) CountFirstLearnedSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for key, rec := range m.st.mastery {
		if key.userID == userID && rec.FirstLearnedAt != nil && !rec.FirstLearnedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *masteryStore) CountByLevel(_ context.Context, userID uuid.UUID) (map[domain.MasteryLevel]int, error) {
	counts := make(map[domain.MasteryLevel]int, len(domain.AllMasteryLevels()))
	for _, level := range domain.AllMasteryLevels() {
		counts[level] = 0
	}
	for key, rec := range m.st.mastery {
		if key.userID == userID {
			counts[rec.MasteryLevel]++
		}
	}
	return counts, nil
}
