// Package auth implements admin key authentication for the stockwatch API.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	stockwatch "github.com/eugener/stockwatch/internal"
)

// AdminKeyAuth accepts requests bearing the configured admin key.
// Only the key's SHA-256 digest is kept in memory.
type AdminKeyAuth struct {
	digest [sha256.Size]byte
}

// NewAdminKeyAuth returns an authenticator for key. An empty key yields
// nil: callers treat a nil authenticator as "auth disabled".
func NewAdminKeyAuth(key string) *AdminKeyAuth {
	if key == "" {
		return nil
	}
	return &AdminKeyAuth{digest: sha256.Sum256([]byte(key))}
}

// Authenticate extracts a Bearer token from the Authorization header and
// compares its digest in constant time.
func (a *AdminKeyAuth) Authenticate(r *http.Request) error {
	header := r.Header.Get("Authorization")
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" || raw == header {
		return stockwatch.ErrUnauthorized
	}
	got := sha256.Sum256([]byte(raw))
	if subtle.ConstantTimeCompare(got[:], a.digest[:]) != 1 {
		return stockwatch.ErrUnauthorized
	}
	return nil
}
