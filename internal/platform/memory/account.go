package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

type accountStore struct {
	st *state
}

var _ store.AccountStore = (*accountStore)(nil)

func (m *accountStore) Get(_ context.Context, userID uuid.UUID) (*domain.LearnerAccount, error) {
	a, ok := m.st.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: learner account", store.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (m *accountStore) GetOrCreateForUpdate(
	_ context.Context,
	userID uuid.UUID,
	defaultGoal int,
) (*domain.LearnerAccount, error) {
	a, ok := m.st.accounts[userID]
	if !ok {
		a = domain.NewLearnerAccount(userID, defaultGoal, time.Now().UTC())
		put(m.st, m.st.accounts, userID, a)
	}
	c := *a
	return &c, nil
}

func (m *accountStore) Update(_ context.Context, a *domain.LearnerAccount) error {
	if a.PointBalance < 0 {
		return fmt.Errorf("%w: negative point balance", store.ErrInvalidEntity)
	}
	if _, ok := m.st.accounts[a.UserID]; !ok {
		return store.ErrNotFound
	}
	c := *a
	put(m.st, m.st.accounts, a.UserID, &c)
	return nil
}
