package review_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/domain/srs"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/phrazzld/lexis-api/internal/platform/memory"
	"github.com/phrazzld/lexis-api/internal/service/review"
	"github.com/phrazzld/lexis-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const day = 24 * time.Hour

type fixture struct {
	store   *memory.Store
	service *review.Service
	clock   *clock
	userID  uuid.UUID
	items   []domain.Item

	mu       sync.Mutex
	mastered []events.ItemMasteredPayload
}

func newFixture(t *testing.T, cfg review.Config) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.NewStore(nil),
		clock:  &clock{now: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)},
		userID: uuid.New(),
	}
	for i, d := range []domain.Difficulty{
		domain.DifficultyAdvanced, domain.DifficultyBeginner, domain.DifficultyElementary,
	} {
		f.items = append(f.items, domain.Item{
			ID:         uuid.New(),
			Headword:   string(rune('a' + i)),
			Difficulty: d,
			ItemType:   "WORD",
		})
	}
	f.store.AddItems(f.items...)

	emitter := events.NewInMemoryEventEmitter(nil)
	emitter.RegisterHandler(events.HandlerFunc(func(_ context.Context, e *events.Event) error {
		if e.Type != events.TypeItemMastered {
			return nil
		}
		var p events.ItemMasteredPayload
		if err := e.UnmarshalPayload(&p); err != nil {
			return err
		}
		f.mu.Lock()
		f.mastered = append(f.mastered, p)
		f.mu.Unlock()
		return nil
	}))
	f.service = review.NewService(f.store, srs.NewDefaultService(), emitter, cfg, f.clock.Now, nil)
	return f
}

func (f *fixture) attempt(itemID uuid.UUID, correct bool) domain.StudyAttempt {
	return domain.StudyAttempt{
		UserID:           f.userID,
		ItemID:           itemID,
		IsCorrect:        correct,
		StudyType:        domain.StudyTypeRecall,
		TimeSpentSeconds: 5,
	}
}

func (f *fixture) startSession(t *testing.T) *domain.SessionSummary {
	t.Helper()
	sess, err := domain.NewSession(f.userID, domain.SessionTypeVocabularyReview, f.clock.Now())
	require.NoError(t, err)
	err = f.store.WithinTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		return s.Sessions.Create(ctx, sess)
	})
	require.NoError(t, err)
	return sess
}

func TestSubmitReviewCreatesRecordOnFirstExposure(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{})

	res, err := f.service.SubmitReview(context.Background(), f.attempt(f.items[0].ID, true))
	require.NoError(t, err)

	rec := res.Record
	assert.Equal(t, domain.MasteryLearning, rec.MasteryLevel)
	assert.Equal(t, 1, rec.StudyCount)
	assert.Equal(t, 1, rec.RepetitionCount)
	assert.Equal(t, 1, rec.ReviewIntervalDays)
	assert.InDelta(t, 2.5, rec.EaseFactor, 1e-9)
	assert.Equal(t, f.clock.Now().AddDate(0, 0, 1), rec.NextReviewAt)
	require.NotNil(t, rec.FirstLearnedAt)
	assert.Nil(t, res.Session)
	assert.False(t, res.NewlyMastered)
}

func TestSubmitReviewValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{})
	ctx := context.Background()

	bad := f.attempt(f.items[0].ID, true)
	bad.TimeSpentSeconds = -1
	_, err := f.service.SubmitReview(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrValidation)

	bad = f.attempt(f.items[0].ID, true)
	bad.StudyType = "GUESSING"
	_, err = f.service.SubmitReview(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidStudyType)

	_, err = f.service.SubmitReview(ctx, f.attempt(uuid.New(), true))
	assert.ErrorIs(t, err, store.ErrItemNotFound)

	_, err = f.service.GetRecord(ctx, f.userID, f.items[0].ID)
	assert.ErrorIs(t, err, store.ErrMasteryRecordNotFound)
}

func TestLateButCorrectScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{})
	ctx := context.Background()
	itemID := f.items[0].ID

	_, err := f.service.SubmitReview(ctx, f.attempt(itemID, true))
	require.NoError(t, err)
	f.clock.Advance(day)
	res, err := f.service.SubmitReview(ctx, f.attempt(itemID, true))
	require.NoError(t, err)
	require.Equal(t, 6, res.Record.ReviewIntervalDays)

	for d := 2; d < 7; d++ {
		f.clock.Advance(day)
		q, err := f.service.GetDueQueue(ctx, f.userID, 10)
		require.NoError(t, err)
		assert.Empty(t, q, "day %d", d+1)
	}
	for d := 7; d < 20; d++ {
		f.clock.Advance(day)
		q, err := f.service.GetDueQueue(ctx, f.userID, 10)
		require.NoError(t, err)
		require.Len(t, q, 1, "day %d", d+1)
		assert.Equal(t, itemID, q[0].ItemID)
		assert.False(t, q[0].New)
	}

	res, err = f.service.SubmitReview(ctx, f.attempt(itemID, true))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Record.RepetitionCount)
	assert.Equal(t, 15, res.Record.ReviewIntervalDays)
	assert.Zero(t, res.Record.WrongCount)
}

func TestIncorrectAnswerResets(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{})
	ctx := context.Background()
	itemID := f.items[0].ID

	for range 2 {
		_, err := f.service.SubmitReview(ctx, f.attempt(itemID, true))
		require.NoError(t, err)
	}
	res, err := f.service.SubmitReview(ctx, f.attempt(itemID, false))
	require.NoError(t, err)

	assert.Zero(t, res.Record.RepetitionCount)
	assert.Equal(t, 1, res.Record.ReviewIntervalDays)
	assert.InDelta(t, 2.3, res.Record.EaseFactor, 1e-9)
	assert.Equal(t, domain.MasteryLearning, res.Record.MasteryLevel)
	assert.InDelta(t, 2.0/3.0, res.Record.AccuracyRate, 1e-9)
}

func TestConcurrentReviewsOnSamePairAreSerialized(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{})
	ctx := context.Background()
	itemID := f.items[0].ID

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.SubmitReview(ctx, f.attempt(itemID, true))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := f.service.GetRecord(ctx, f.userID, itemID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.StudyCount)
	assert.Equal(t, 2, rec.RepetitionCount)
	assert.Equal(t, 6, rec.ReviewIntervalDays)
	assert.Equal(t, domain.MasteryFamiliar, rec.MasteryLevel)
}

func TestSubmitReviewFoldsIntoActiveSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{PointsPerCorrect: 3})
	ctx := context.Background()

	f.startSession(t)
	for _, a := range []domain.StudyAttempt{
		f.attempt(f.items[0].ID, true),
		f.attempt(f.items[0].ID, false),
		f.attempt(f.items[1].ID, true),
	} {
		f.clock.Advance(time.Minute)
		_, err := f.service.SubmitReview(ctx, a)
		require.NoError(t, err)
	}

	res, err := f.service.SubmitReview(ctx, f.attempt(f.items[2].ID, false))
	require.NoError(t, err)
	require.NotNil(t, res.Session)

	sess := res.Session
	assert.Equal(t, 4, sess.QuestionsAnswered)
	assert.Equal(t, 2, sess.QuestionsCorrect)
	assert.Equal(t, 3, sess.WordsStudied)
	assert.Equal(t, 6, sess.PointsEarned)
	assert.InDelta(t, 0.5, sess.AccuracyRate, 1e-9)
}

func TestSubmitReviewSkipsPausedSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{PointsPerCorrect: 3})
	ctx := context.Background()

	sess := f.startSession(t)
	paused, err := sess.Pause(f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, f.store.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		return s.Sessions.Update(ctx, &paused)
	}))

	res, err := f.service.SubmitReview(ctx, f.attempt(f.items[0].ID, true))
	require.NoError(t, err)
	assert.Nil(t, res.Session)
	assert.Equal(t, 1, res.Record.StudyCount)
}

func TestItemMasteredEvent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{})
	ctx := context.Background()
	itemID := f.items[0].ID

	var res *review.Result
	var err error
	for range 3 {
		res, err = f.service.SubmitReview(ctx, f.attempt(itemID, true))
		require.NoError(t, err)
		f.clock.Advance(time.Duration(res.Record.ReviewIntervalDays) * day)
	}
	// 1, 6, 15: not yet three weeks.
	assert.Equal(t, domain.MasteryFamiliar, res.Record.MasteryLevel)

	res, err = f.service.SubmitReview(ctx, f.attempt(itemID, true))
	require.NoError(t, err)
	assert.Equal(t, 38, res.Record.ReviewIntervalDays)
	assert.Equal(t, domain.MasteryMastered, res.Record.MasteryLevel)
	assert.True(t, res.NewlyMastered)

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.mastered, 1)
	assert.Equal(t, itemID, f.mastered[0].ItemID)
	assert.Equal(t, domain.MasteryMastered, f.mastered[0].Level)
}

func TestGetDueQueueBackfill(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{Backfill: true, DefaultDailyGoal: 2, DefaultLimit: 5, MaxLimit: 10})
	ctx := context.Background()

	_, created, err := f.service.EnrollItem(ctx, f.userID, f.items[0].ID)
	require.NoError(t, err)
	require.True(t, created)

	q, err := f.service.GetDueQueue(ctx, f.userID, 0)
	require.NoError(t, err)
	require.Len(t, q, 3)
	assert.Equal(t, review.QueueEntry{ItemID: f.items[0].ID}, q[0])
	// Unseen items come easiest first.
	assert.Equal(t, review.QueueEntry{ItemID: f.items[1].ID, New: true}, q[1])
	assert.Equal(t, review.QueueEntry{ItemID: f.items[2].ID, New: true}, q[2])

	// Learning one item today uses up half of the daily goal.
	_, err = f.service.SubmitReview(ctx, f.attempt(f.items[1].ID, true))
	require.NoError(t, err)
	q, err = f.service.GetDueQueue(ctx, f.userID, 0)
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Equal(t, f.items[0].ID, q[0].ItemID)
	assert.Equal(t, review.QueueEntry{ItemID: f.items[2].ID, New: true}, q[1])

	// Backfill never displaces due items.
	q, err = f.service.GetDueQueue(ctx, f.userID, 1)
	require.NoError(t, err)
	require.Len(t, q, 1)
	assert.Equal(t, f.items[0].ID, q[0].ItemID)

	_, err = f.service.GetDueQueue(ctx, f.userID, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidLimit)
}

func TestEnrollResetAndBreakdown(t *testing.T) {
	t.Parallel()
	f := newFixture(t, review.Config{})
	ctx := context.Background()
	itemID := f.items[0].ID

	for range 2 {
		_, err := f.service.SubmitReview(ctx, f.attempt(itemID, true))
		require.NoError(t, err)
	}
	rec, created, err := f.service.EnrollItem(ctx, f.userID, itemID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 2, rec.StudyCount)

	_, _, err = f.service.EnrollItem(ctx, f.userID, f.items[1].ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	rec, err = f.service.ResetProgress(ctx, f.userID, itemID)
	require.NoError(t, err)
	assert.Equal(t, domain.MasteryNew, rec.MasteryLevel)
	assert.Zero(t, rec.RepetitionCount)
	assert.Equal(t, 1, rec.ReviewIntervalDays)
	assert.InDelta(t, domain.DefaultEaseFactor, rec.EaseFactor, 1e-9)
	assert.Equal(t, 2, rec.StudyCount)
	assert.True(t, rec.IsDue(f.clock.Now()))

	counts, err := f.service.GetMasteryBreakdown(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, map[domain.MasteryLevel]int{
		domain.MasteryNew:      2,
		domain.MasteryLearning: 0,
		domain.MasteryFamiliar: 0,
		domain.MasteryMastered: 0,
		domain.MasteryExpert:   0,
	}, counts)

	_, err = f.service.ResetProgress(ctx, f.userID, f.items[2].ID)
	assert.ErrorIs(t, err, store.ErrMasteryRecordNotFound)
}
