package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/service"
	"github.com/phrazzld/lexis-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.ErrInvalidGrade, http.StatusBadRequest},
		{"wrapped validation", fmt.Errorf("submit: %w", domain.ErrEmptyItemID), http.StatusBadRequest},
		{"validator errors", validator.ValidationErrors{}, http.StatusBadRequest},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"not found", store.ErrSessionNotFound, http.StatusNotFound},
		{"service wrapped not found", service.NewServiceError("session.Get", "failed", store.ErrSessionNotFound), http.StatusNotFound},
		{"state conflict", domain.ErrSessionAlreadyActive, http.StatusConflict},
		{"duplicate", store.ErrCheckInRecordExists, http.StatusConflict},
		{"insufficient points", domain.ErrInsufficientPoints, http.StatusPaymentRequired},
		{"lock timeout", store.ErrLockTimeout, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"invariant violation", domain.ErrInvalidMasteryRecord, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapErrorToStatusCode(tt.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"specific validation", fmt.Errorf("%w: %q", domain.ErrInvalidStudyType, "X"), "Unknown study type"},
		{"generic validation", fmt.Errorf("%w: id has invalid format", domain.ErrValidation), "Invalid request"},
		{"specific not found", store.ErrActivityNotFound, "Check-in activity not found"},
		{"makeup", fmt.Errorf("%w: 9 days back exceeds limit of 3", domain.ErrMakeupNotAllowed), "Makeup check-in not allowed"},
		{"transient", store.ErrLockTimeout, "Service temporarily unavailable, please retry"},
		{"internal detail", errors.New(`pq: relation "mastery_records" does not exist`), "An unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetSafeErrorMessage(tt.err))
		})
	}
}
