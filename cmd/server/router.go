package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/lexis-api/internal/api"
	apiMiddleware "github.com/phrazzld/lexis-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	reviewHandler := api.NewReviewHandler(app.reviewService, app.logger)
	sessionHandler := api.NewSessionHandler(app.sessionService, app.logger)
	rewardHandler := api.NewRewardHandler(app.rewardService, app.clock, app.logger)
	challengeHandler := api.NewChallengeHandler(app.challengeService, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(apiMiddleware.Identity)

		r.Post("/reviews", reviewHandler.SubmitReview)
		r.Get("/reviews/due", reviewHandler.GetDueQueue)

		r.Route("/items/{id}", func(r chi.Router) {
			r.Post("/enroll", reviewHandler.EnrollItem)
			r.Post("/reset", reviewHandler.ResetProgress)
			r.Get("/mastery", reviewHandler.GetRecord)
		})
		r.Get("/mastery/breakdown", reviewHandler.GetMasteryBreakdown)

		r.Post("/sessions", sessionHandler.Start)
		r.Get("/sessions/active", sessionHandler.GetActive)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", sessionHandler.Get)
			r.Post("/end", sessionHandler.End)
			r.Post("/pause", sessionHandler.Pause)
			r.Post("/resume", sessionHandler.Resume)
			r.Post("/abandon", sessionHandler.Abandon)
		})

		r.Post("/checkins/{id}", rewardHandler.CheckIn)
		r.Get("/checkins", rewardHandler.ListCheckIns)
		r.Post("/activities", rewardHandler.CreateActivity)
		r.Post("/activities/{id}/{action}", rewardHandler.TransitionActivity)
		r.Get("/streak", rewardHandler.GetStreak)
		r.Get("/account", rewardHandler.GetAccount)

		r.Post("/challenges", challengeHandler.Create)
		r.Route("/challenges/{id}", func(r chi.Router) {
			r.Get("/", challengeHandler.Get)
			r.Post("/status/{action}", challengeHandler.Transition)
			r.Post("/join", challengeHandler.Join)
			r.Delete("/join", challengeHandler.Leave)
			r.Post("/progress", challengeHandler.RecordProgress)
			r.Post("/complete", challengeHandler.Complete)
			r.Post("/abandon", challengeHandler.Abandon)
			r.Get("/leaderboard", challengeHandler.Leaderboard)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
