package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

type contextKeyType string

const sessionKey contextKeyType = "session"

// Session carries the authenticated identity extracted from a bearer token.
// TokenID and TokenExpiresAt identify the presented token itself so logout
// and refresh can revoke it individually.
type Session struct {
	UserID         string
	Email          string
	Role           string
	TokenID        string
	TokenExpiresAt time.Time
}

// SessionValidator resolves a raw Authorization header into a Session.
// The full header value is passed through untouched so the validator can
// inspect the bearer prefix as well as the token itself. Any failure must
// return an error; the middleware answers 401 without distinguishing causes.
type SessionValidator func(ctx context.Context, authorization string) (*Session, error)

// Auth validates the Authorization header and injects the Session into context.
func Auth(validate SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w)
				return
			}

			session, err := validate(r.Context(), authHeader)
			if err != nil {
				writeAuthError(w)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole checks that the authenticated user has one of the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil {
				writeAuthError(w)
				return
			}
			if _, ok := roleSet[session.Role]; !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"code":    "FORBIDDEN",
					"message": "insufficient permissions",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the Session stored by Auth, or nil.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey).(*Session); ok {
		return s
	}
	return nil
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) string {
	if s := SessionFromContext(ctx); s != nil {
		return s.UserID
	}
	return ""
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    "UNAUTHORIZED",
		"message": "unauthorized",
	})
}
