package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/lexis-api/internal/api/shared"
	"github.com/phrazzld/lexis-api/internal/domain"
	"github.com/phrazzld/lexis-api/internal/store"
)

// MapErrorToStatusCode maps the error taxonomy to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.As(err, &verrs),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrStateConflict),
		errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	case errors.Is(err, domain.ErrInsufficientResource):
		return http.StatusPaymentRequired

	case errors.Is(err, domain.ErrTransient),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}

// safeMessages lists client-facing messages, most specific first.
var safeMessages = []struct {
	err     error
	message string
}{
	{domain.ErrEmptyUserID, "User ID is required"},
	{domain.ErrEmptyItemID, "Item ID is required"},
	{domain.ErrInvalidStudyType, "Unknown study type"},
	{domain.ErrInvalidSessionType, "Unknown session type"},
	{domain.ErrInvalidTimeSpent, "Time spent is out of range"},
	{domain.ErrInvalidGrade, "Grade must be between 0 and 5"},
	{domain.ErrInvalidLimit, "Limit must be positive"},
	{domain.ErrInvalidDate, "Invalid date"},
	{domain.ErrValidation, "Invalid request"},

	{store.ErrMasteryRecordNotFound, "Mastery record not found"},
	{store.ErrSessionNotFound, "Session not found"},
	{store.ErrActivityNotFound, "Check-in activity not found"},
	{store.ErrItemNotFound, "Item not found"},
	{store.ErrChallengeNotFound, "Challenge not found"},
	{store.ErrParticipationNotFound, "Challenge participation not found"},
	{store.ErrNotFound, "Not found"},

	{domain.ErrSessionAlreadyActive, "An active session already exists"},
	{domain.ErrMakeupNotAllowed, "Makeup check-in not allowed"},
	{domain.ErrAlreadyCheckedIn, "Already checked in for this date"},
	{domain.ErrActivityNotActive, "Check-in activity is not active"},
	{domain.ErrOutsideActivityDates, "Date is outside the check-in activity period"},
	{domain.ErrCheckInRulesNotMet, "Check-in rules not met"},
	{domain.ErrChallengeNotOpen, "Challenge is not open"},
	{domain.ErrChallengeFull, "Challenge is full"},
	{domain.ErrAlreadyJoined, "Already joined this challenge"},
	{domain.ErrInvalidState, "Operation not allowed in the current state"},
	{domain.ErrStateConflict, "Request conflicts with current state"},

	{domain.ErrInsufficientPoints, "Insufficient points"},
	{domain.ErrTransient, "Service temporarily unavailable, please retry"},
}

// GetSafeErrorMessage returns a client-facing message for err that never
// exposes internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return SanitizeValidationError(verrs)
	}
	for _, m := range safeMessages {
		if errors.Is(err, m.err) {
			return m.message
		}
	}
	if MapErrorToStatusCode(err) == http.StatusServiceUnavailable {
		return "Service temporarily unavailable, please retry"
	}
	return "An unexpected error occurred"
}

// SanitizeValidationError turns validator errors into a message naming the
// first offending field.
func SanitizeValidationError(verrs validator.ValidationErrors) string {
	if len(verrs) == 0 {
		return "Validation error"
	}
	fe := verrs[0]
	return fmt.Sprintf("Invalid %s: %s", strings.ToLower(fe.Field()), getValidationTagMessage(fe.Tag()))
}

func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min", "gte", "gt":
		return "too small"
	case "max", "lte", "lt":
		return "too large"
	case "oneof":
		return "invalid value"
	case "uuid", "uuid4":
		return "invalid id format"
	case "datetime":
		return "invalid date format"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the error response for err. A non-empty fallback
// replaces the generic message of unexpected errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err)
}
