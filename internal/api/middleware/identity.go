package middleware

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/lexis-api/internal/api/shared"
	"github.com/phrazzld/lexis-api/internal/platform/logger"
)

// UserIDHeader carries the caller's identity, set by the upstream gateway
// after it has authenticated the request.
const UserIDHeader = "X-User-ID"

// Identity reads the caller's user ID from UserIDHeader into the request
// context. Requests without a valid ID are rejected with 401.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(UserIDHeader)
		if raw == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "User identity required")
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil || userID == uuid.Nil {
			logger.FromContext(r.Context()).Debug("rejected malformed user identity")
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid user identity")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.WithUserID(r.Context(), userID)))
	})
}
