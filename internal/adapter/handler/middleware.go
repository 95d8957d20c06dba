package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/rl1809/shop-cart/internal/port"
)

const bearerPrefix = "Bearer "

type usernameKey struct{}

// AuthGate rejects requests without a valid bearer token with an empty 401.
// Missing, malformed and invalid tokens are indistinguishable to the caller.
func AuthGate(tokens port.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			username, err := tokens.Validate(strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				hlog.FromRequest(r).Debug().Err(err).Msg("rejected bearer token")
				w.WriteHeader(http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey{}, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext returns the caller bound by AuthGate.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey{}).(string)
	return username, ok
}
