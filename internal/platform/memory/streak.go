package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

func cloneStreak(s *domain.StreakState) *domain.StreakState {
	c := *s
	if s.LastActivityDate != nil {
		d := *s.LastActivityDate
		c.LastActivityDate = &d
	}
	return &c
}

type streakStore struct {
	st *state
}

var _ store.StreakStore = (*streakStore)(nil)

func (m *streakStore) Get(_ context.Context, userID uuid.UUID) (*domain.StreakState, error) {
	s, ok := m.st.streaks[userID]
	if !ok {
		return domain.NewStreakState(userID), nil
	}
	return cloneStreak(s), nil
}

func (m *streakStore) GetOrCreateForUpdate(_ context.Context, userID uuid.UUID) (*domain.StreakState, error) {
	s, ok := m.st.streaks[userID]
	if !ok {
		s = domain.NewStreakState(userID)
		put(m.st, m.st.streaks, userID, s)
	}
	return cloneStreak(s), nil
}

func (m *streakStore) Update(_ context.Context, s *domain.StreakState) error {
	if _, ok := m.st.streaks[s.UserID]; !ok {
		return store.ErrNotFound
	}
	put(m.st, m.st.streaks, s.UserID, cloneStreak(s))
	return nil
}

func (m *streakStore) AddActivityDay(_ context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	set, ok := m.st.days[userID]
	if !ok {
		set = make(map[time.Time]struct{})
		put(m.st, m.st.days, userID, set)
	}
	day = day.UTC()
	if _, exists := set[day]; exists {
		return false, nil
	}
	put(m.st, set, day, struct{}{})
	return true, nil
}

func (m *streakStore) ListActivityDays(_ context.Context, userID uuid.UUID) ([]time.Time, error) {
	set := m.st.days[userID]
	days := make([]time.Time, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}
