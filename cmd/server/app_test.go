package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/lexis-api/internal/config"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, LogLevel: "debug", ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{Backend: backendMemory, LockTimeout: time.Second},
		SRS: config.SRSConfig{
			MinEaseFactor:      1.3,
			CorrectGrade:       4,
			LapsePenalty:       0.2,
			FirstIntervalDays:  1,
			SecondIntervalDays: 6,
			MaxIntervalDays:    365,
		},
		Rewards: config.RewardsConfig{
			PointsPerCorrect: 1,
			DefaultDailyGoal: 10,
		},
		Session: config.SessionConfig{
			IdleTimeout:       30 * time.Minute,
			PausedIdleTimeout: 24 * time.Hour,
			SweepInterval:     time.Minute,
			SweepBatchSize:    10,
		},
		Streak:    config.StreakConfig{Timezone: "UTC"},
		Scheduler: config.SchedulerConfig{DefaultLimit: 20, MaxLimit: 100},
		Retry:     config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond, OpTimeout: 5 * time.Second},
		Notify:    config.NotifyConfig{Workers: 1, QueueSize: 8},
	}
}

func newTestApplication(t *testing.T, cfg *config.Config) *application {
	t.Helper()
	log, _ := logger.NewTestLogger()
	app, err := newApplication(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

func doJSON(t *testing.T, h http.Handler, method, path string, userID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != uuid.Nil {
		req.Header.Set("X-User-ID", userID.String())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewApplicationRejectsInvalidThreshold(t *testing.T) {
	cfg := memoryConfig()
	cfg.SRS.Thresholds = []config.ThresholdConfig{{Level: "GURU", MinRepetitions: 1}}

	log, _ := logger.NewTestLogger()
	_, err := newApplication(context.Background(), cfg, log)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidMasteryLevel)
}

func TestEngineParamsFromConfig(t *testing.T) {
	cfg := memoryConfig().SRS
	cfg.FirstIntervalDays = 2
	cfg.SecondIntervalDays = 4
	cfg.LapsePenalty = 0

	params, err := engineParams(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, params.FirstIntervalDays)
	assert.Equal(t, 4, params.SecondIntervalDays)
	assert.Zero(t, params.LapsePenalty)
}

func TestNewApplicationRejectsDecreasingTiers(t *testing.T) {
	cfg := memoryConfig()
	cfg.Rewards.StreakTiers = []config.TierConfig{
		{MinDays: 0, Multiplier: 1.5},
		{MinDays: 7, Multiplier: 1.2},
	}

	log, _ := logger.NewTestLogger()
	_, err := newApplication(context.Background(), cfg, log)
	assert.ErrorContains(t, err, "streak multipliers")
}

func TestSeedCatalogRequiresMemoryBackend(t *testing.T) {
	app := newTestApplication(t, memoryConfig())
	app.memStore = nil
	assert.Error(t, app.seedCatalog("items.json"))
}

func TestReadSeedItems(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	id := uuid.New()
	require.NoError(t, os.WriteFile(good, []byte(`[{"id":"`+id.String()+`","headword":"ephemeral"}]`), 0o600))
	items, err := readSeedItems(good)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, domain.DifficultyBeginner, items[0].Difficulty)

	missingID := filepath.Join(dir, "missing.json")
	require.NoError(t, os.WriteFile(missingID, []byte(`[{"headword":"x"}]`), 0o600))
	_, err = readSeedItems(missingID)
	assert.ErrorContains(t, err, "no id")
}

func TestRouterReviewSessionFlow(t *testing.T) {
	app := newTestApplication(t, memoryConfig())
	itemID := uuid.New()
	app.memStore.AddItems(domain.Item{ID: itemID, Headword: "lucid", Difficulty: domain.DifficultyBeginner})
	router := app.setupRouter()
	user := uuid.New()

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", user, map[string]any{
		"session_type": "VOCABULARY_REVIEW",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess domain.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	rec = doJSON(t, router, http.MethodPost, "/api/reviews", user, map[string]any{
		"item_id":            itemID.String(),
		"is_correct":         true,
		"study_type":         "RECALL",
		"time_spent_seconds": 4,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/sessions/"+sess.ID.String()+"/end", user, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var ended struct {
		Session domain.SessionSummary `json:"session"`
		Streak  domain.StreakState    `json:"streak"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ended))
	assert.Equal(t, domain.SessionStatusCompleted, ended.Session.Status)
	assert.Equal(t, 1, ended.Session.QuestionsCorrect)
	assert.Equal(t, 1, ended.Streak.CurrentStreak)

	rec = doJSON(t, router, http.MethodGet, "/api/account", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var account domain.LearnerAccount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &account))
	assert.Equal(t, 1, account.PointBalance)
}

func TestRouterRequiresIdentity(t *testing.T) {
	app := newTestApplication(t, memoryConfig())
	router := app.setupRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/streak", uuid.Nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/health", uuid.Nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
