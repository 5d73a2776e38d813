// internal/server/handlers/identity.go

package handlers

import (
	"context"
	"net/http"
	"strings"

	"locale/internal/config"
	"locale/internal/domain/identity"
)

type contextKey string

const userKey contextKey = "user"

// Identity reads the identity headers set by the OAuth proxy in front of the
// service. Requests without them are anonymous.
func Identity(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := identity.Anonymous

			if id := strings.TrimSpace(r.Header.Get(cfg.UserHeader)); id != "" {
				user = identity.User{
					ID:            id,
					DisplayName:   strings.TrimSpace(r.Header.Get(cfg.NameHeader)),
					Authenticated: true,
				}
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		})
	}
}

// UserFromContext returns the request identity
func UserFromContext(ctx context.Context) identity.User {
	if u, ok := ctx.Value(userKey).(identity.User); ok {
		return u
	}
	return identity.Anonymous
}
