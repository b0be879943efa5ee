package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

type entryKey struct {
	challengeID uuid.UUID
	userID      uuid.UUID
}

func cloneChallenge(c *domain.Challenge) *domain.Challenge {
	out := *c
	if c.EndTime != nil {
		t := *c.EndTime
		out.EndTime = &t
	}
	return &out
}

func cloneParticipation(p *domain.ChallengeParticipation) *domain.ChallengeParticipation {
	out := *p
	if p.LastActivityAt != nil {
		t := *p.LastActivityAt
		out.LastActivityAt = &t
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

type challengeStore struct {
	st *state
}

var _ store.ChallengeStore = (*challengeStore)(nil)

func (m *challengeStore) Create(_ context.Context, c *domain.Challenge) error {
	if _, ok := m.st.challenges[c.ID]; ok {
		return store.ErrDuplicate
	}
	put(m.st, m.st.challenges, c.ID, cloneChallenge(c))
	return nil
}

func (m *challengeStore) Get(_ context.Context, id uuid.UUID) (*domain.Challenge, error) {
	c, ok := m.st.challenges[id]
	if !ok {
		return nil, store.ErrChallengeNotFound
	}
	return cloneChallenge(c), nil
}

func (m *challengeStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Challenge, error) {
	return m.Get(ctx, id)
}

func (m *challengeStore) Update(_ context.Context, c *domain.Challenge) error {
	if _, ok := m.st.challenges[c.ID]; !ok {
		return store.ErrChallengeNotFound
	}
	put(m.st, m.st.challenges, c.ID, cloneChallenge(c))
	return nil
}

func (m *challengeStore) CreateParticipation(_ context.Context, p *domain.ChallengeParticipation) error {
	key := entryKey{p.ChallengeID, p.UserID}
	if _, ok := m.st.entries[key]; ok {
		return store.ErrParticipationExists
	}
	put(m.st, m.st.entries, key, cloneParticipation(p))
	return nil
}

func (m *challengeStore) GetParticipationForUpdate(
	_ context.Context,
	challengeID, userID uuid.UUID,
) (*domain.ChallengeParticipation, error) {
	p, ok := m.st.entries[entryKey{challengeID, userID}]
	if !ok {
		return nil, store.ErrParticipationNotFound
	}
	return cloneParticipation(p), nil
}

func (m *challengeStore) UpdateParticipation(_ context.Context, p *domain.ChallengeParticipation) error {
	key := entryKey{p.ChallengeID, p.UserID}
	if _, ok := m.st.entries[key]; !ok {
		return store.ErrParticipationNotFound
	}
	put(m.st, m.st.entries, key, cloneParticipation(p))
	return nil
}

func (m *challengeStore) DeleteParticipation(_ context.Context, challengeID, userID uuid.UUID) error {
	key := entryKey{challengeID, userID}
	old, ok := m.st.entries[key]
	if !ok {
		return store.ErrParticipationNotFound
	}
	m.st.undo = append(m.st.undo, func() { m.st.entries[key] = old })
	delete(m.st.entries, key)
	return nil
}

func (m *challengeStore) collect(challengeID uuid.UUID, keep func(*domain.ChallengeParticipation) bool) []domain.ChallengeParticipation {
	var out []domain.ChallengeParticipation
	for key, p := range m.st.entries {
		if key.challengeID == challengeID && keep(p) {
			out = append(out, *cloneParticipation(p))
		}
	}
	return out
}

func (m *challengeStore) ListCompleted(_ context.Context, challengeID uuid.UUID) ([]domain.ChallengeParticipation, error) {
	out := m.collect(challengeID, func(p *domain.ChallengeParticipation) bool {
		return p.Status == domain.ParticipationStatusCompleted
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].BestScore != out[j].BestScore {
			return out[i].BestScore > out[j].BestScore
		}
		return out[i].CompletedAt.Before(*out[j].CompletedAt)
	})
	return out, nil
}

func (m *challengeStore) Leaderboard(
	_ context.Context,
	challengeID uuid.UUID,
	limit int,
) ([]domain.ChallengeParticipation, error) {
	out := m.collect(challengeID, func(p *domain.ChallengeParticipation) bool {
		return p.Status != domain.ParticipationStatusAbandoned
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].BestScore != out[j].BestScore {
			return out[i].BestScore > out[j].BestScore
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
