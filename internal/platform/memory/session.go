package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

func cloneSession(s *domain.SessionSummary) *domain.SessionSummary {
	c := *s
	if s.EndTime != nil {
		t := *s.EndTime
		c.EndTime = &t
	}
	if s.PausedAt != nil {
		t := *s.PausedAt
		c.PausedAt = &t
	}
	return &c
}

func isOpen(s *domain.SessionSummary) bool {
	return s.Status == domain.SessionStatusActive || s.Status == domain.SessionStatusPaused
}

type sessionStore struct {
	st *state
}

var _ store.SessionStore = (*sessionStore)(nil)

func (m *sessionStore) openFor(userID, except uuid.UUID) *domain.SessionSummary {
	for _, s := range m.st.sessions {
		if s.UserID == userID && s.ID != except && isOpen(s) {
			return s
		}
	}
	return nil
}

func (m *sessionStore) Create(_ context.Context, s *domain.SessionSummary) error {
	if _, ok := m.st.sessions[s.ID]; ok {
		return store.ErrDuplicate
	}
	if isOpen(s) && m.openFor(s.UserID, s.ID) != nil {
		return store.ErrActiveSessionExists
	}
	put(m.st, m.st.sessions, s.ID, cloneSession(s))
	return nil
}

func (m *sessionStore) Get(_ context.Context, id uuid.UUID) (*domain.SessionSummary, error) {
	s, ok := m.st.sessions[id]
	if !ok {
		return nil, store.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *sessionStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.SessionSummary, error) {
	return m.Get(ctx, id)
}

func (m *sessionStore) GetOpenForUpdate(_ context.Context, userID uuid.UUID) (*domain.SessionSummary, error) {
	s := m.openFor(userID, uuid.Nil)
	if s == nil {
		return nil, store.ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *sessionStore) Update(_ context.Context, s *domain.SessionSummary) error {
	if _, ok := m.st.sessions[s.ID]; !ok {
		return store.ErrSessionNotFound
	}
	if isOpen(s) && m.openFor(s.UserID, s.ID) != nil {
		return store.ErrActiveSessionExists
	}
	put(m.st, m.st.sessions, s.ID, cloneSession(s))
	return nil
}

func (m *sessionStore) ListCompleted(
	_ context.Context,
	userID uuid.UUID,
	from, to time.Time,
) ([]domain.SessionSummary, error) {
	var out []domain.SessionSummary
	for _, s := range m.st.sessions {
		if s.UserID != userID || s.Status != domain.SessionStatusCompleted || s.EndTime == nil {
			continue
		}
		if !s.EndTime.Before(from) && s.EndTime.Before(to) {
			out = append(out, *cloneSession(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(*out[j].EndTime) })
	return out, nil
}

func (m *sessionStore) ListIdle(_ context.Context, activeCutoff, pausedCutoff time.Time, limit int) ([]uuid.UUID, error) {
	var idle []*domain.SessionSummary
	for _, s := range m.st.sessions {
		switch {
		case s.Status == domain.SessionStatusActive && s.LastActivityAt.Before(activeCutoff),
			s.Status == domain.SessionStatusPaused && s.LastActivityAt.Before(pausedCutoff):
			idle = append(idle, s)
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].LastActivityAt.Before(idle[j].LastActivityAt) })
	if limit > 0 && len(idle) > limit {
		idle = idle[:limit]
	}
	ids := make([]uuid.UUID, len(idle))
	for i, s := range idle {
		ids[i] = s.ID
	}
	return ids, nil
}
