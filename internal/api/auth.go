package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/kalambet/lumina/internal/auth"
	"github.com/kalambet/lumina/internal/vault"
)

const bearerPrefix = "Bearer "

// BearerAuth guards management routes with the API token.
func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, bearerPrefix) || subtle.ConstantTimeCompare([]byte(h[len(bearerPrefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type claimsKey struct{}

// SessionStore reports the signed-in session. Implemented by *vault.Vault.
type SessionStore interface {
	GetSession() (*vault.UserSession, error)
}

// SessionAuth guards dashboard routes with a signed session token. The token
// must also name the session currently stored, so logout revokes it.
func SessionAuth(signer *auth.Signer, sessions SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, bearerPrefix) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "missing session token")
				return
			}
			claims, err := signer.Parse(h[len(bearerPrefix):])
			if err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
				return
			}
			current, err := sessions.GetSession()
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "loading session: %v", err)
				return
			}
			if current == nil || current.Token != claims.LuminaID {
				httpError(w, http.StatusUnauthorized, "authentication_error", "session has ended")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}

// ClaimsFrom returns the session claims attached by SessionAuth.
func ClaimsFrom(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok
}
