package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"custodia/pkg/requestcontext"
)

// RequireAdminToken gates administrative endpoints behind a shared secret in
// X-Admin-Token. Comparison is constant time.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				unauthorized(w, "admin token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
