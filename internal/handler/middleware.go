package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopmduc247/product-assistant-bfa-go/internal/auth"
	"go.uber.org/zap"
)

type contextKey string

const userIDKey contextKey = "userID"

// OptionalAuth resolves the user from a Bearer token when one is present.
// A missing or invalid token never rejects the request; the caller simply
// continues as anonymous.
func OptionalAuth(validator *auth.TokenValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validator == nil {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Debug("auth: malformed authorization header, continuing anonymous",
					zap.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			userID, err := validator.UserID(strings.TrimSpace(parts[1]))
			if err != nil {
				logger.Debug("auth: invalid token, continuing anonymous",
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id, or nil for anonymous
// callers.
func UserIDFromContext(ctx context.Context) *string {
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}
