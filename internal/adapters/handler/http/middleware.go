package http

import (
	"context"
	"net/http"

	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
)

type contextKey string

const IdentityKey contextKey = "identity"

// Authenticate rejects requests without a valid bearer token and stores
// the verified identity in the request context.
func Authenticate(tokens ports.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := tokens.Verify(bearerToken(r))
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(domain.Identity)
	return identity, ok
}
