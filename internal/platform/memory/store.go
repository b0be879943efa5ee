// Package memory provides an in-process implementation of the store
// interfaces. It backs the service tests and the "memory" database backend.
//
// Units of work are serialized by a single lock and write in place. Every
// write is journaled, and a unit that fails or panics has its writes undone
// in reverse order, so it leaves no partial writes behind. The cost of a
// unit is proportional to what it touches, not to the size of the store.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
	"golang.org/x/sync/semaphore"
)

type masteryKey struct {
	userID uuid.UUID
	itemID uuid.UUID
}

type state struct {
	mastery    map[masteryKey]*domain.MasteryRecord
	sessions   map[uuid.UUID]*domain.SessionSummary
	streaks    map[uuid.UUID]*domain.StreakState
	days       map[uuid.UUID]map[time.Time]struct{}
	accounts   map[uuid.UUID]*domain.LearnerAccount
	activities map[uuid.UUID]*domain.CheckInActivity
	records    map[uuid.UUID]*domain.CheckInRecord
	challenges map[uuid.UUID]*domain.Challenge
	entries    map[entryKey]*domain.ChallengeParticipation
	items      map[uuid.UUID]domain.Item

	// undo holds the inverse of each write made by the running unit of work.
	undo []func()
}

func newState() *state {
	return &state{
		mastery:    make(map[masteryKey]*domain.MasteryRecord),
		sessions:   make(map[uuid.UUID]*domain.SessionSummary),
		streaks:    make(map[uuid.UUID]*domain.StreakState),
		days:       make(map[uuid.UUID]map[time.Time]struct{}),
		accounts:   make(map[uuid.UUID]*domain.LearnerAccount),
		activities: make(map[uuid.UUID]*domain.CheckInActivity),
		records:    make(map[uuid.UUID]*domain.CheckInRecord),
		challenges: make(map[uuid.UUID]*domain.Challenge),
		entries:    make(map[entryKey]*domain.ChallengeParticipation),
		items:      make(map[uuid.UUID]domain.Item),
	}
}

// put sets m[k] to v and journals the previous entry so that rollback can
// restore it. Every write in a unit of work goes through put.
func put[K comparable, V any](st *state, m map[K]V, k K, v V) {
	old, had := m[k]
	st.undo = append(st.undo, func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// rollback undoes journaled writes, newest first.
func (s *state) rollback() {
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.undo = s.undo[:0]
}

// Store holds the committed state and implements store.Transactor.
type Store struct {
	// sem admits one unit of work at a time; Acquire honors ctx.
	sem    *semaphore.Weighted
	state  *state
	logger *slog.Logger
}

// NewStore creates an empty Store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sem:    semaphore.NewWeighted(1),
		state:  newState(),
		logger: logger.With(slog.String("component", "memory_store")),
	}
}

var _ store.Transactor = (*Store)(nil)

// WithinTx implements store.Transactor. Waiting for the store lock is bounded
// by ctx; a cancelled wait is reported as store.ErrLockTimeout.
func (s *Store) WithinTx(ctx context.Context, fn store.UnitFn) (err error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("%w: %w", store.ErrLockTimeout, err)
	}
	defer s.sem.Release(1)

	committed := false
	defer func() {
		if !committed {
			s.state.rollback()
		}
	}()

	s.state.undo = s.state.undo[:0]
	if err = fn(ctx, stores(s.state)); err != nil {
		s.logger.Debug("discarding unit of work",
			slog.String("error", err.Error()),
			slog.Int("writes", len(s.state.undo)))
		return err
	}
	committed = true
	s.state.undo = s.state.undo[:0]
	return nil
}

func stores(st *state) store.Stores {
	return store.Stores{
		Mastery:    &masteryStore{st: st},
		Sessions:   &sessionStore{st: st},
		Streaks:    &streakStore{st: st},
		Accounts:   &accountStore{st: st},
		CheckIns:   &checkInStore{st: st},
		Challenges: &challengeStore{st: st},
		Catalog:    &catalog{st: st},
	}
}

// AddItems seeds the catalog. Existing IDs are overwritten.
func (s *Store) AddItems(items ...domain.Item) {
	_ = s.sem.Acquire(context.Background(), 1)
	defer s.sem.Release(1)
	for _, item := range items {
		s.state.items[item.ID] = item
	}
}
