package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth"
)

// UserIDHeader carries the caller identity when no JWT secret is configured.
const UserIDHeader = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID stores the caller identity on ctx
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the caller identity, or "" when there is none
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// HeaderIdentity trusts the X-User-ID header set by an upstream gateway.
func HeaderIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// JWTIdentity verifies an HS256 bearer token and uses its sub claim as the
// caller identity. Requests without a valid token get 401.
func JWTIdentity(secret string) func(http.Handler) http.Handler {
	tokenAuth := jwtauth.New("HS256", []byte(secret), nil)
	return func(next http.Handler) http.Handler {
		subject := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err == nil {
				if sub, ok := claims["sub"].(string); ok && sub != "" {
					r = r.WithContext(WithUserID(r.Context(), sub))
				}
			}
			next.ServeHTTP(w, r)
		})
		return jwtauth.Verifier(tokenAuth)(jwtauth.Authenticator(subject))
	}
}

// Identity picks JWTIdentity when secret is set, HeaderIdentity otherwise.
func Identity(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		return HeaderIdentity
	}
	return JWTIdentity(secret)
}
