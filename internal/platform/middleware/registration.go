package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/httputil"
	"intake/pkg/requestcontext"
)

// TokenValidator resolves a registration token to its session.
type TokenValidator interface {
	ValidateToken(token string) (id.SessionID, error)
}

func bearerToken(r *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// RequireRegistration rejects requests without a valid registration token and
// binds the token's session ID into the context.
func RequireRegistration(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := bearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "registration token missing",
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			sessionID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "registration token rejected",
					"request_id", GetRequestID(ctx),
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}
			ctx = requestcontext.WithSessionID(ctx, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalRegistration binds the session of a valid token when one is
// presented. Missing or invalid tokens pass through as anonymous callers.
func OptionalRegistration(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if sessionID, err := validator.ValidateToken(token); err == nil {
					r = r.WithContext(requestcontext.WithSessionID(r.Context(), sessionID))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
