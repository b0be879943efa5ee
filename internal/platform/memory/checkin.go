package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

func cloneActivity(a *domain.CheckInActivity) *domain.CheckInActivity {
	c := *a
	if a.EndDate != nil {
		d := *a.EndDate
		c.EndDate = &d
	}
	return &c
}

type checkInStore struct {
	st *state
}

var _ store.CheckInStore = (*checkInStore)(nil)

func (m *checkInStore) CreateActivity(_ context.Context, a *domain.CheckInActivity) error {
	if _, ok := m.st.activities[a.ID]; ok {
		return store.ErrDuplicate
	}
	put(m.st, m.st.activities, a.ID, cloneActivity(a))
	return nil
}

func (m *checkInStore) GetActivity(_ context.Context, id uuid.UUID) (*domain.CheckInActivity, error) {
	a, ok := m.st.activities[id]
	if !ok {
		return nil, store.ErrActivityNotFound
	}
	return cloneActivity(a), nil
}

func (m *checkInStore) UpdateActivity(_ context.Context, a *domain.CheckInActivity) error {
	if _, ok := m.st.activities[a.ID]; !ok {
		return store.ErrActivityNotFound
	}
	put(m.st, m.st.activities, a.ID, cloneActivity(a))
	return nil
}

func (m *checkInStore) find(userID, checkInID uuid.UUID, day time.Time) *domain.CheckInRecord {
	for _, r := range m.st.records {
		if r.UserID == userID && r.CheckInID == checkInID && r.Date.Equal(day) &&
			r.Status != domain.CheckInStatusCancelled {
			return r
		}
	}
	return nil
}

func (m *checkInStore) FindRecord(
	_ context.Context,
	userID, checkInID uuid.UUID,
	day time.Time,
) (*domain.CheckInRecord, error) {
	r := m.find(userID, checkInID, day)
	if r == nil {
		return nil, store.ErrCheckInRecordNotFound
	}
	c := *r
	return &c, nil
}

func (m *checkInStore) CreateRecord(_ context.Context, r *domain.CheckInRecord) error {
	if r.Status != domain.CheckInStatusCancelled && m.find(r.UserID, r.CheckInID, r.Date) != nil {
		return store.ErrCheckInRecordExists
	}
	c := *r
	put(m.st, m.st.records, r.ID, &c)
	return nil
}

func (m *checkInStore) ListRecords(
	_ context.Context,
	userID uuid.UUID,
	from, to time.Time,
) ([]domain.CheckInRecord, error) {
	var out []domain.CheckInRecord
	for _, r := range m.st.records {
		if r.UserID == userID && !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
