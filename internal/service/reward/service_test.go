package reward_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/domain/streak"
	"github.com/phrazzld/lexis-api/internal/events"
	"github.com/phrazzld/lexis-api/internal/platform/memory"
	"github.com/phrazzld/lexis-api/internal/service/reward"
	"github.com/phrazzld/lexis-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recorder) HandleEvent(_ context.Context, e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store    *memory.Store
	service  *reward.Service
	recorder *recorder
	now      time.Time
	userID   uuid.UUID
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	multipliers, err := streak.NewMultipliers(nil)
	require.NoError(t, err)

	f := &fixture{
		store:    memory.NewStore(nil),
		recorder: &recorder{},
		now:      now,
		userID:   uuid.New(),
	}
	emitter := events.NewInMemoryEventEmitter(nil)
	emitter.RegisterHandler(f.recorder)
	accountant := reward.NewAccountant(multipliers, time.UTC, domain.DefaultDailyGoal)
	f.service = reward.NewService(f.store, accountant, emitter, func() time.Time { return f.now }, nil)
	return f
}

func (f *fixture) today() time.Time {
	return domain.CalendarDay(f.now, time.UTC)
}

func (f *fixture) activity(t *testing.T, mutate func(a *domain.CheckInActivity)) uuid.UUID {
	t.Helper()
	a := &domain.CheckInActivity{
		Title:         "daily words",
		Status:        domain.ActivityStatusActive,
		StartDate:     f.today().AddDate(0, 0, -30),
		BasePoints:    10,
		AllowMakeup:   true,
		MakeupCost:    5,
		MaxMakeupDays: 3,
	}
	if mutate != nil {
		mutate(a)
	}
	want := a.Status
	ctx := context.Background()
	require.NoError(t, f.service.CreateActivity(ctx, a))
	require.Equal(t, domain.ActivityStatusDraft, a.Status)

	if want != domain.ActivityStatusDraft {
		_, err := f.service.TransitionActivity(ctx, a.ID, domain.ActivityStatusActive)
		require.NoError(t, err)
	}
	if want != domain.ActivityStatusDraft && want != domain.ActivityStatusActive {
		_, err := f.service.TransitionActivity(ctx, a.ID, want)
		require.NoError(t, err)
	}
	return a.ID
}

// completeSession stores a finished session of the given length ending at end.
func (f *fixture) completeSession(t *testing.T, end time.Time, seconds int) {
	t.Helper()
	start := end.Add(-time.Duration(seconds) * time.Second)
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		return s.Sessions.Create(ctx, &domain.SessionSummary{
			ID:              uuid.New(),
			UserID:          f.userID,
			SessionType:     domain.SessionTypeVocabularyReview,
			Status:          domain.SessionStatusCompleted,
			StartTime:       start,
			EndTime:         &end,
			LastActivityAt:  end,
			DurationSeconds: seconds,
			CreatedAt:       start,
			UpdatedAt:       end,
		})
	})
	require.NoError(t, err)
}

func (f *fixture) fund(t *testing.T, points int) {
	t.Helper()
	err := f.store.WithinTx(context.Background(), func(ctx context.Context, s store.Stores) error {
		a, err := s.Accounts.GetOrCreateForUpdate(ctx, f.userID, domain.DefaultDailyGoal)
		if err != nil {
			return err
		}
		a.Credit(points, f.now)
		return s.Accounts.Update(ctx, a)
	})
	require.NoError(t, err)
}

func (f *fixture) state(t *testing.T) (domain.StreakState, domain.LearnerAccount) {
	t.Helper()
	summary, err := f.service.GetStreak(context.Background(), f.userID)
	require.NoError(t, err)
	account, err := f.service.GetAccount(context.Background(), f.userID)
	require.NoError(t, err)
	return summary.StreakState, *account
}

var fixedNow = time.Date(2026, 3, 15, 9, 30, 0, 0, time.UTC)

func TestCheckInToday(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	id := f.activity(t, nil)

	res, err := f.service.CheckIn(context.Background(), f.userID, id, reward.CheckInRequest{})
	require.NoError(t, err)

	assert.Equal(t, domain.CheckInStatusCompleted, res.Record.Status)
	assert.Equal(t, domain.CheckInTypeNormal, res.Record.Type)
	assert.Equal(t, f.today(), res.Record.Date)
	assert.Equal(t, 10, res.Record.PointsEarned)
	assert.Equal(t, 1, res.Record.StreakDays)
	assert.Equal(t, 10, res.Account.PointBalance)
	assert.Equal(t, []string{events.TypeRewardGranted}, f.recorder.types())
}

func TestCheckInRejectsDuplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	id := f.activity(t, nil)
	ctx := context.Background()

	_, err := f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
	require.NoError(t, err)
	_, err = f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{Date: f.now})
	require.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)
	assert.ErrorIs(t, err, domain.ErrStateConflict)

	_, account := f.state(t)
	assert.Equal(t, 10, account.PointBalance)
}

func TestCheckInValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(a *domain.CheckInActivity)
		req     func(today time.Time) reward.CheckInRequest
		wantErr error
	}{
		{
			name: "regular check-in for a past day",
			req: func(today time.Time) reward.CheckInRequest {
				return reward.CheckInRequest{Date: today.AddDate(0, 0, -1)}
			},
			wantErr: domain.ErrInvalidDate,
		},
		{
			name:   "activity not active",
			mutate: func(a *domain.CheckInActivity) { a.Status = domain.ActivityStatusPaused },
			req: func(time.Time) reward.CheckInRequest {
				return reward.CheckInRequest{}
			},
			wantErr: domain.ErrActivityNotActive,
		},
		{
			name: "date outside activity period",
			mutate: func(a *domain.CheckInActivity) {
				a.StartDate = fixedNow.AddDate(0, 0, 1)
			},
			req: func(time.Time) reward.CheckInRequest {
				return reward.CheckInRequest{}
			},
			wantErr: domain.ErrOutsideActivityDates,
		},
		{
			name:   "makeup disabled",
			mutate: func(a *domain.CheckInActivity) { a.AllowMakeup = false },
			req: func(today time.Time) reward.CheckInRequest {
				return reward.CheckInRequest{Date: today.AddDate(0, 0, -1), IsMakeup: true}
			},
			wantErr: domain.ErrMakeupNotAllowed,
		},
		{
			name: "makeup for today",
			req: func(today time.Time) reward.CheckInRequest {
				return reward.CheckInRequest{Date: today, IsMakeup: true}
			},
			wantErr: domain.ErrMakeupNotAllowed,
		},
		{
			name: "makeup beyond window",
			req: func(today time.Time) reward.CheckInRequest {
				return reward.CheckInRequest{Date: today.AddDate(0, 0, -4), IsMakeup: true}
			},
			wantErr: domain.ErrMakeupNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, fixedNow)
			id := f.activity(t, tt.mutate)
			f.fund(t, 100)

			_, err := f.service.CheckIn(context.Background(), f.userID, id, tt.req(f.today()))
			require.ErrorIs(t, err, tt.wantErr)

			st, account := f.state(t)
			assert.Nil(t, st.LastActivityDate)
			assert.Equal(t, 100, account.PointBalance)
			assert.Empty(t, f.recorder.types())
		})
	}
}

func TestCheckInUnknownActivity(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)

	_, err := f.service.CheckIn(context.Background(), f.userID, uuid.New(), reward.CheckInRequest{})
	assert.ErrorIs(t, err, store.ErrActivityNotFound)
}

func TestMakeupInsufficientPointsLeavesStateUnchanged(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	id := f.activity(t, nil)
	f.fund(t, 9)

	_, err := f.service.CheckIn(context.Background(), f.userID, id, reward.CheckInRequest{
		Date:     f.today().AddDate(0, 0, -2),
		IsMakeup: true,
	})
	require.ErrorIs(t, err, domain.ErrInsufficientPoints)
	assert.ErrorIs(t, err, domain.ErrInsufficientResource)

	st, account := f.state(t)
	assert.Nil(t, st.LastActivityDate)
	assert.Equal(t, 9, account.PointBalance)

	records, err := f.service.ListCheckIns(context.Background(), f.userID,
		f.today().AddDate(0, 0, -7), f.today())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMakeupBridgesGap(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	id := f.activity(t, nil)
	ctx := context.Background()
	today := f.today()

	_, err := f.service.RecordDailyActivity(ctx, f.userID, today.AddDate(0, 0, -2))
	require.NoError(t, err)
	_, err = f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
	require.NoError(t, err)

	st, account := f.state(t)
	require.Equal(t, 1, st.CurrentStreak)
	require.Equal(t, 10, account.PointBalance)

	res, err := f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{
		Date:     today.AddDate(0, 0, -1),
		IsMakeup: true,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.CheckInTypeMakeup, res.Record.Type)
	assert.True(t, res.Record.IsMakeup)
	assert.Equal(t, 5, res.Record.MakeupCost)
	assert.Equal(t, 3, res.Streak.CurrentStreak)
	assert.Equal(t, 3, res.Streak.MaxStreak)
	assert.Equal(t, today, *res.Streak.LastActivityDate)
	assert.Equal(t, 10-5+10, res.Account.PointBalance)
	assert.Equal(t, 20, res.Account.TotalPointsEarned)
}

func TestMakeupCostScalesWithDaysBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	id := f.activity(t, nil)
	f.fund(t, 100)

	res, err := f.service.CheckIn(context.Background(), f.userID, id, reward.CheckInRequest{
		Date:     f.today().AddDate(0, 0, -3),
		IsMakeup: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 15, res.Record.MakeupCost)
	assert.Equal(t, 100-15+10, res.Account.PointBalance)
}

func TestCheckInRewardUsesStreakMultiplier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		priorDays  int
		wantPoints int
	}{
		{name: "short streak", priorDays: 2, wantPoints: 10},
		{name: "one week", priorDays: 6, wantPoints: 12},
		{name: "one month", priorDays: 29, wantPoints: 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, fixedNow)
			id := f.activity(t, func(a *domain.CheckInActivity) {
				a.StartDate = fixedNow.AddDate(0, 0, -60)
			})
			ctx := context.Background()
			for d := tt.priorDays; d >= 1; d-- {
				_, err := f.service.RecordDailyActivity(ctx, f.userID, f.today().AddDate(0, 0, -d))
				require.NoError(t, err)
			}

			res, err := f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
			require.NoError(t, err)
			assert.Equal(t, tt.priorDays+1, res.Streak.CurrentStreak)
			assert.Equal(t, tt.wantPoints, res.Grant.Points)

			var payload events.RewardGrantedPayload
			f.recorder.mu.Lock()
			last := f.recorder.events[len(f.recorder.events)-1]
			f.recorder.mu.Unlock()
			require.NoError(t, last.UnmarshalPayload(&payload))
			assert.Equal(t, events.SourceCheckIn, payload.Source)
			assert.Equal(t, res.Record.ID, payload.SourceID)
			assert.Equal(t, tt.wantPoints, payload.Points)
		})
	}
}

func TestRecordDailyActivity(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	ctx := context.Background()
	today := f.today()

	for _, d := range []int{-5, -4, -3} {
		_, err := f.service.RecordDailyActivity(ctx, f.userID, today.AddDate(0, 0, d))
		require.NoError(t, err)
	}

	st, err := f.service.RecordDailyActivity(ctx, f.userID, today.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Equal(t, 3, st.CurrentStreak)

	st, err = f.service.RecordDailyActivity(ctx, f.userID, today)
	require.NoError(t, err)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 3, st.MaxStreak)
	assert.Equal(t, []string{events.TypeStreakBroken}, f.recorder.types())

	_, err = f.service.RecordDailyActivity(ctx, f.userID, today.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestConcurrentSameDayActivityCollapses(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.RecordDailyActivity(ctx, f.userID, f.today())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, _ := f.state(t)
	assert.Equal(t, 1, st.CurrentStreak)
	assert.Equal(t, 1, st.MaxStreak)
}

func TestGetAccountWithoutActivity(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)

	account, err := f.service.GetAccount(context.Background(), f.userID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultDailyGoal, account.DailyGoal)
	assert.Zero(t, account.PointBalance)

	_, err = f.service.GetAccount(context.Background(), uuid.Nil)
	assert.ErrorIs(t, err, domain.ErrEmptyUserID)
}

func TestListCheckInsRejectsInvertedRange(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)

	_, err := f.service.ListCheckIns(context.Background(), f.userID, f.today(), f.today().AddDate(0, 0, -1))
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}

func TestGetStreakReportsLapsedStreakAsZero(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	ctx := context.Background()

	last := f.today().AddDate(0, 0, -10)
	err := f.store.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		st, err := s.Streaks.GetOrCreateForUpdate(ctx, f.userID)
		if err != nil {
			return err
		}
		st.CurrentStreak, st.MaxStreak, st.LastActivityDate = 31, 31, &last
		return s.Streaks.Update(ctx, st)
	})
	require.NoError(t, err)

	summary, err := f.service.GetStreak(ctx, f.userID)
	require.NoError(t, err)
	assert.Zero(t, summary.CurrentStreak)
	assert.Equal(t, 1.0, summary.Multiplier)
	assert.Equal(t, 31, summary.MaxStreak)
	require.NotNil(t, summary.LastActivityDate)
	assert.Equal(t, last, *summary.LastActivityDate)

	yesterday := f.today().AddDate(0, 0, -1)
	err = f.store.WithinTx(ctx, func(ctx context.Context, s store.Stores) error {
		st, err := s.Streaks.GetOrCreateForUpdate(ctx, f.userID)
		if err != nil {
			return err
		}
		st.LastActivityDate = &yesterday
		return s.Streaks.Update(ctx, st)
	})
	require.NoError(t, err)

	summary, err = f.service.GetStreak(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 31, summary.CurrentStreak)
	assert.Equal(t, 1.5, summary.Multiplier)
}

func TestActivityLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	ctx := context.Background()
	id := f.activity(t, func(a *domain.CheckInActivity) { a.Status = domain.ActivityStatusDraft })

	_, err := f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
	require.ErrorIs(t, err, domain.ErrActivityNotActive)

	a, err := f.service.TransitionActivity(ctx, id, domain.ActivityStatusActive)
	require.NoError(t, err)
	assert.Equal(t, domain.ActivityStatusActive, a.Status)
	assert.Equal(t, fixedNow, a.UpdatedAt)

	_, err = f.service.TransitionActivity(ctx, id, domain.ActivityStatusPaused)
	require.NoError(t, err)
	_, err = f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
	require.ErrorIs(t, err, domain.ErrActivityNotActive)

	_, err = f.service.TransitionActivity(ctx, id, domain.ActivityStatusActive)
	require.NoError(t, err)
	_, err = f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
	require.NoError(t, err)

	_, err = f.service.TransitionActivity(ctx, id, domain.ActivityStatusCompleted)
	require.NoError(t, err)
	_, err = f.service.TransitionActivity(ctx, id, domain.ActivityStatusActive)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = f.service.TransitionActivity(ctx, uuid.New(), domain.ActivityStatusActive)
	assert.ErrorIs(t, err, store.ErrActivityNotFound)
}

func TestCreateActivityIgnoresRequestedStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)

	a := &domain.CheckInActivity{Title: "x", Status: domain.ActivityStatusActive, StartDate: fixedNow}
	require.NoError(t, f.service.CreateActivity(context.Background(), a))
	assert.Equal(t, domain.ActivityStatusDraft, a.Status)

	bad := &domain.CheckInActivity{Title: "x", StartDate: fixedNow, Rules: domain.CheckInRules{RequiredSessions: -1}}
	assert.ErrorIs(t, f.service.CreateActivity(context.Background(), bad), domain.ErrValidation)
}

func TestCheckInEnforcesRules(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	ctx := context.Background()
	id := f.activity(t, func(a *domain.CheckInActivity) {
		a.Rules = domain.CheckInRules{MinStudyMinutes: 20, RequiredSessions: 2}
	})

	// Yesterday's session does not count toward today.
	f.completeSession(t, f.today().Add(-time.Minute), 3600)
	f.completeSession(t, f.today().Add(8*time.Hour), 15*60)

	_, err := f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
	require.ErrorIs(t, err, domain.ErrCheckInRulesNotMet)
	assert.ErrorIs(t, err, domain.ErrStateConflict)

	f.completeSession(t, f.today().Add(9*time.Hour), 4*60)
	_, err = f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
	require.ErrorIs(t, err, domain.ErrCheckInRulesNotMet, "19 minutes is short of 20")

	f.completeSession(t, f.today().Add(9*time.Hour+10*time.Minute), 60)
	res, err := f.service.CheckIn(ctx, f.userID, id, reward.CheckInRequest{})
	require.NoError(t, err)
	assert.Equal(t, 10, res.Grant.Points)
}

func TestMakeupIsNotBoundByRules(t *testing.T) {
	t.Parallel()
	f := newFixture(t, fixedNow)
	id := f.activity(t, func(a *domain.CheckInActivity) {
		a.Rules = domain.CheckInRules{RequiredSessions: 1}
	})
	f.fund(t, 5)

	_, err := f.service.CheckIn(context.Background(), f.userID, id, reward.CheckInRequest{
		Date:     f.today().AddDate(0, 0, -1),
		IsMakeup: true,
	})
	require.NoError(t, err)
}
