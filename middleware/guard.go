package middleware

import (
	"context"
	"net/http"
	"strings"
)

// Identity is the verified caller placed into the request context by [Guard].
type Identity struct {
	UserID string
	Token  string
}

// VerifyFunc validates a raw bearer token and returns the user it belongs to.
type VerifyFunc func(ctx context.Context, token string) (string, error)

type identityContextKey struct{}

// IdentityFromContext returns the identity injected by [Guard].
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

// Guard rejects requests whose bearer token fails verify with 401.
// reject writes the error body; nil falls back to http.Error.
func Guard(verify VerifyFunc, reject func(http.ResponseWriter, int, string)) func(http.Handler) http.Handler {
	if reject == nil {
		reject = func(w http.ResponseWriter, code int, msg string) { http.Error(w, msg, code) }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verify == nil {
				reject(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				reject(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			userID, err := verify(r.Context(), token)
			if err != nil {
				reject(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, Identity{UserID: userID, Token: token})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
