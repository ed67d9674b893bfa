// ABOUTME: Handshake identity resolution for websocket upgrade requests
// ABOUTME: Extracts the bearer token from the Authorization header or token query param

package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Handshake errors
var (
	ErrNoCredentials = errors.New("no credentials presented")
)

// Resolver resolves the authenticated identity for a connection handshake.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// TokenResolver resolves identities from bearer tokens on the upgrade
// request. Browsers cannot set headers on websocket handshakes, so a
// `token` query parameter is accepted as a fallback.
type TokenResolver struct {
	verifier TokenVerifier
}

// NewTokenResolver creates a resolver backed by the given verifier.
func NewTokenResolver(verifier TokenVerifier) *TokenResolver {
	return &TokenResolver{verifier: verifier}
}

// Resolve extracts and verifies the handshake token.
func (tr *TokenResolver) Resolve(r *http.Request) (Identity, error) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return Identity{}, ErrNoCredentials
	}
	return tr.verifier.Verify(token)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns an empty string if the header is absent or malformed.
func extractBearerToken(authHeader string) string {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(authHeader, "Bearer ")
}
