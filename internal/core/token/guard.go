package token

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
)

const (
	headerAuthorization = "Authorization"
	bearerPrefix        = "Bearer "
)

// Guard verifies inbound credentials against the global secret only.
// Realm-scoped tokens never pass through it.
type Guard struct {
	codec  *Codec
	secret []byte
}

func NewGuard(codec *Codec, globalSecret string) *Guard {
	return &Guard{codec: codec, secret: []byte(globalSecret)}
}

// Authenticate extracts the bearer token from h and returns its verified
// claims. A missing header yields domain.ErrMissingToken; any decode
// failure wraps domain.ErrInvalidToken.
func (g *Guard) Authenticate(h http.Header) (Claims, error) {
	raw := BearerToken(h.Get(headerAuthorization))
	if raw == "" {
		return Claims{}, domain.ErrMissingToken
	}
	claims, err := g.codec.Decode(raw, g.secret)
	if err != nil {
		return Claims{}, fmt.Errorf("authenticate: %w", err)
	}
	return claims, nil
}

// BearerToken strips a literal "Bearer " prefix; raw tokens pass through.
// A prefix with nothing after it yields "".
func BearerToken(header string) string {
	v := strings.TrimSpace(header)
	if v == strings.TrimSpace(bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(v, bearerPrefix))
}
