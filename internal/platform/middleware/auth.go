package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "custodia/pkg/domain"
	"custodia/pkg/requestcontext"
)

// TokenValidator verifies a bearer token and returns the participant it
// authenticates.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.ParticipantID, error)
}

// RequireAuth authenticates the request from its bearer token and puts the
// acting participant on the context. Requests without a valid token get 401.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized request, missing bearer token",
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w, "missing or invalid Authorization header")
				return
			}
			actor, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized request, invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
