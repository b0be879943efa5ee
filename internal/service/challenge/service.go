// Package challenge runs challenges: joining and leaving, progress reports,
// completion with rank rewards, and the leaderboard.
package challenge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
	"github.com/phrazzld/lexis-api/internal/platform/tracing"
	"github.com/phrazzld/lexis-api/internal/service"
	"github.com/phrazzld/lexis-api/internal/service/reward"
	"github.com/phrazzld/lexis-api/internal/store"
)

var tracer = tracing.Tracer("service/challenge")

// ProgressRequest is one progress report. Nil fields are left unchanged.
type ProgressRequest struct {
	Score          *int
	CompletedTasks *int
}

// Award is the reward one finisher received when a challenge completed.
type Award struct {
	UserID          uuid.UUID    `json:"user_id"`
	ParticipationID uuid.UUID    `json:"participation_id"`
	Rank            int          `json:"rank"`
	Grant           reward.Grant `json:"grant"`
}

// TransitionResult is the challenge after a status change. Awards is set
// only when the change completed the challenge.
type TransitionResult struct {
	Challenge domain.Challenge `json:"challenge"`
	Awards    []Award          `json:"awards,omitempty"`
}

// LeaderboardEntry is one row of a challenge leaderboard. Participants with
// equal best scores share a rank.
type LeaderboardEntry struct {
	Rank               int                        `json:"rank"`
	UserID             uuid.UUID                  `json:"user_id"`
	Status             domain.ParticipationStatus `json:"status"`
	BestScore          int                        `json:"best_score"`
	CurrentScore       int                        `json:"current_score"`
	ProgressPercentage float64                    `json:"progress_percentage"`
}

// Service implements the challenge operations.
type Service struct {
	tx         store.Transactor
	accountant *reward.Accountant
	emitter    events.EventEmitter
	now        func() time.Time
	logger     *slog.Logger
}

// NewService creates a challenge Service. emitter and clock may be nil.
func NewService(
	tx store.Transactor,
	accountant *reward.Accountant,
	emitter events.EventEmitter,
	clock func() time.Time,
	logger *slog.Logger,
) *Service {
	if tx == nil {
		panic("transactor cannot be nil")
	}
	if accountant == nil {
		panic("accountant cannot be nil")
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tx:         tx,
		accountant: accountant,
		emitter:    emitter,
		now:        clock,
		logger:     logger.With(slog.String("component", "challenge_service")),
	}
}

// Create stores a new challenge as a draft with no participants.
func (s *Service) Create(ctx context.Context, c *domain.Challenge) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := s.now()
	c.Status = domain.ChallengeStatusDraft
	c.CurrentParticipants = 0
	c.CreatedAt, c.UpdatedAt = now, now

	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		return st.Challenges.Create(ctx, c)
	})
	if err != nil {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("challenge created",
		slog.String("challenge_id", c.ID.String()),
		slog.Int("reward_points", c.RewardPoints))
	return nil
}

// Get returns a challenge by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Challenge, error) {
	var c *domain.Challenge
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		var err error
		c, err = st.Challenges.Get(ctx, id)
		return err
	})
	if err != nil {
		return nil, service.NewServiceError("challenge.Get", "failed to load challenge", err)
	}
	return c, nil
}

// Transition moves a challenge to status to. Completing a challenge ranks
// its finishers and credits each one's rank reward in the same unit of work.
func (s *Service) Transition(
	ctx context.Context,
	id uuid.UUID,
	to domain.ChallengeStatus,
) (_ *TransitionResult, err error) {
	ctx, span := tracer.Start(ctx, "challenge.Transition")
	defer func() { tracing.RecordError(span, err); span.End() }()
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !to.IsValid() {
		return nil, fmt.Errorf("%w: unknown challenge status %q", domain.ErrValidation, to)
	}

	var box service.Outbox
	var result TransitionResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		box.Reset()
		result = TransitionResult{}

		c, err := st.Challenges.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		if err := c.TransitionTo(to, now); err != nil {
			return err
		}
		if to == domain.ChallengeStatusCompleted {
			if result.Awards, err = s.distribute(ctx, st, &box, c, now); err != nil {
				return err
			}
		}
		if err := st.Challenges.Update(ctx, c); err != nil {
			return err
		}
		result.Challenge = *c
		return nil
	})
	if err != nil {
		log.Warn("challenge transition rejected",
			slog.String("challenge_id", id.String()),
			slog.String("to", string(to)),
			slog.String("error", err.Error()))
		return nil, err
	}

	box.Flush(ctx, s.emitter, log)
	log.Info("challenge transitioned",
		slog.String("challenge_id", id.String()),
		slog.String("status", string(to)),
		slog.Int("awards", len(result.Awards)))
	return &result, nil
}

// distribute ranks the completed participations of c and credits each its
// rank reward. Finishers with equal best scores share a rank.
func (s *Service) distribute(
	ctx context.Context,
	st store.Stores,
	box *service.Outbox,
	c *domain.Challenge,
	now time.Time,
) ([]Award, error) {
	finishers, err := st.Challenges.ListCompleted(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list finishers: %w", err)
	}
	ranks := competitionRanks(finishers)

	// Accounts are locked in user ID order so that concurrent completions
	// sharing participants cannot deadlock.
	order := make([]int, len(finishers))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return finishers[order[a]].UserID.String() < finishers[order[b]].UserID.String()
	})

	awards := make([]Award, len(finishers))
	for _, i := range order {
		p := finishers[i]
		points := domain.RankReward(c.RewardPoints, ranks[i])

		account, err := st.Accounts.GetOrCreateForUpdate(ctx, p.UserID, s.accountant.DefaultDailyGoal())
		if err != nil {
			return nil, err
		}
		grant, err := s.accountant.Credit(ctx, st, box, account, points, 0, events.SourceChallenge, p.ID, now)
		if err != nil {
			return nil, err
		}

		p.Ranking = ranks[i]
		p.RewardPoints = grant.Points
		if err := st.Challenges.UpdateParticipation(ctx, &p); err != nil {
			return nil, err
		}
		awards[i] = Award{UserID: p.UserID, ParticipationID: p.ID, Rank: ranks[i], Grant: grant}
	}
	return awards, nil
}

// competitionRanks assigns 1-based ranks to participations already sorted by
// best score descending. Equal scores share a rank and the next distinct
// score skips the shared places.
func competitionRanks(ps []domain.ChallengeParticipation) []int {
	ranks := make([]int, len(ps))
	for i := range ps {
		if i > 0 && ps[i].BestScore == ps[i-1].BestScore {
			ranks[i] = ranks[i-1]
			continue
		}
		ranks[i] = i + 1
	}
	return ranks
}

// Join enters userID into a published or active challenge.
func (s *Service) Join(ctx context.Context, challengeID, userID uuid.UUID) (_ *domain.ChallengeParticipation, err error) {
	ctx, span := tracer.Start(ctx, "challenge.Join")
	defer func() { tracing.RecordError(span, err); span.End() }()

	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}

	var p *domain.ChallengeParticipation
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		c, err := st.Challenges.GetForUpdate(ctx, challengeID)
		if err != nil {
			return err
		}
		now := s.now()
		if !c.Status.CanJoin() || (c.EndTime != nil && !now.Before(*c.EndTime)) {
			return fmt.Errorf("%w: status %s", domain.ErrChallengeNotOpen, c.Status)
		}
		if c.IsFull() {
			return domain.ErrChallengeFull
		}

		p = &domain.ChallengeParticipation{
			ID:          uuid.New(),
			ChallengeID: challengeID,
			UserID:      userID,
			Status:      domain.ParticipationStatusRegistered,
			JoinedAt:    now,
		}
		if err := st.Challenges.CreateParticipation(ctx, p); err != nil {
			if errors.Is(err, store.ErrParticipationExists) {
				return domain.ErrAlreadyJoined
			}
			return err
		}
		c.CurrentParticipants++
		c.UpdatedAt = now
		return st.Challenges.Update(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("challenge joined",
		slog.String("challenge_id", challengeID.String()),
		slog.String("user_id", userID.String()))
	return p, nil
}

// Leave withdraws userID from a challenge. A completed participation cannot
// be withdrawn.
func (s *Service) Leave(ctx context.Context, challengeID, userID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		c, err := st.Challenges.GetForUpdate(ctx, challengeID)
		if err != nil {
			return err
		}
		p, err := st.Challenges.GetParticipationForUpdate(ctx, challengeID, userID)
		if err != nil {
			return err
		}
		if p.Status == domain.ParticipationStatusCompleted {
			return fmt.Errorf("%w: participation is %s", domain.ErrInvalidState, p.Status)
		}
		if err := st.Challenges.DeleteParticipation(ctx, challengeID, userID); err != nil {
			return err
		}
		c.CurrentParticipants = max(0, c.CurrentParticipants-1)
		c.UpdatedAt = s.now()
		return st.Challenges.Update(ctx, c)
	})
	if err != nil {
		return err
	}
	logger.FromContextOrDefault(ctx, s.logger).Info("challenge left",
		slog.String("challenge_id", challengeID.String()),
		slog.String("user_id", userID.String()))
	return nil
}

// RecordProgress applies a progress report to the user's participation in an
// active challenge.
func (s *Service) RecordProgress(
	ctx context.Context,
	challengeID, userID uuid.UUID,
	req ProgressRequest,
) (*domain.ChallengeParticipation, error) {
	return s.updateParticipation(ctx, "challenge.RecordProgress", challengeID, userID,
		func(c *domain.Challenge, p *domain.ChallengeParticipation, now time.Time) error {
			return p.RecordProgress(req.Score, req.CompletedTasks, c.TotalTasks, now)
		})
}

// CompleteParticipation marks the user's participation finished. Only
// finished participations are ranked and rewarded when the challenge ends.
func (s *Service) CompleteParticipation(
	ctx context.Context,
	challengeID, userID uuid.UUID,
) (*domain.ChallengeParticipation, error) {
	return s.updateParticipation(ctx, "challenge.CompleteParticipation", challengeID, userID,
		func(c *domain.Challenge, p *domain.ChallengeParticipation, now time.Time) error {
			if err := p.Complete(now); err != nil {
				return err
			}
			if c.TotalTasks > 0 {
				p.CompletedTasks = c.TotalTasks
			}
			return nil
		})
}

// AbandonParticipation gives up the user's participation. It stays on record
// but leaves the leaderboard.
func (s *Service) AbandonParticipation(
	ctx context.Context,
	challengeID, userID uuid.UUID,
) (*domain.ChallengeParticipation, error) {
	return s.updateParticipation(ctx, "challenge.AbandonParticipation", challengeID, userID,
		func(_ *domain.Challenge, p *domain.ChallengeParticipation, now time.Time) error {
			return p.Abandon(now)
		})
}

func (s *Service) updateParticipation(
	ctx context.Context,
	op string,
	challengeID, userID uuid.UUID,
	apply func(c *domain.Challenge, p *domain.ChallengeParticipation, now time.Time) error,
) (_ *domain.ChallengeParticipation, err error) {
	ctx, span := tracer.Start(ctx, op)
	defer func() { tracing.RecordError(span, err); span.End() }()

	if userID == uuid.Nil {
		return nil, domain.ErrEmptyUserID
	}

	var p *domain.ChallengeParticipation
	err = s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		c, err := st.Challenges.Get(ctx, challengeID)
		if err != nil {
			return err
		}
		if c.Status != domain.ChallengeStatusActive {
			return fmt.Errorf("%w: status %s", domain.ErrChallengeNotOpen, c.Status)
		}
		p, err = st.Challenges.GetParticipationForUpdate(ctx, challengeID, userID)
		if err != nil {
			return err
		}
		if err := apply(c, p, s.now()); err != nil {
			return err
		}
		return st.Challenges.UpdateParticipation(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContextOrDefault(ctx, s.logger).Debug("participation updated",
		slog.String("operation", op),
		slog.String("challenge_id", challengeID.String()),
		slog.String("user_id", userID.String()),
		slog.String("status", string(p.Status)),
		slog.Int("best_score", p.BestScore))
	return p, nil
}

// Leaderboard returns the top limit participants of a challenge by best
// score. Abandoned participations are excluded.
func (s *Service) Leaderboard(ctx context.Context, challengeID uuid.UUID, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}
	var ps []domain.ChallengeParticipation
	err := s.tx.WithinTx(ctx, func(ctx context.Context, st store.Stores) error {
		if _, err := st.Challenges.Get(ctx, challengeID); err != nil {
			return err
		}
		var err error
		ps, err = st.Challenges.Leaderboard(ctx, challengeID, limit)
		return err
	})
	if err != nil {
		return nil, service.NewServiceError("challenge.Leaderboard", "failed to load leaderboard", err)
	}

	ranks := competitionRanks(ps)
	entries := make([]LeaderboardEntry, len(ps))
	for i, p := range ps {
		entries[i] = LeaderboardEntry{
			Rank:               ranks[i],
			UserID:             p.UserID,
			Status:             p.Status,
			BestScore:          p.BestScore,
			CurrentScore:       p.CurrentScore,
			ProgressPercentage: p.ProgressPercentage,
		}
	}
	return entries, nil
}
