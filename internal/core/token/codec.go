package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
)

// Lifetime is the fixed validity window of every issued token.
const Lifetime = 24 * time.Hour

var (
	ErrInvalidSignature = fmt.Errorf("%w: signature mismatch", domain.ErrInvalidToken)
	ErrExpired          = fmt.Errorf("%w: token expired", domain.ErrInvalidToken)
	ErrMalformed        = fmt.Errorf("%w: malformed token", domain.ErrInvalidToken)
)

// Codec encodes and decodes Claims. It holds no secrets; callers pass the
// key of the realm they are working in.
type Codec struct {
	now func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

func NewCodec(opts ...Option) *Codec {
	c := &Codec{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode stamps iat and exp on claims and signs them with secret.
func (c *Codec) Encode(claims Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("encode token: empty secret")
	}
	iat := c.now().UTC().Truncate(time.Second)
	claims.IssuedAt = jwt.NewNumericDate(iat)
	claims.ExpiresAt = jwt.NewNumericDate(iat.Add(Lifetime))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return signed, nil
}

// Decode verifies tok against secret and returns its claims.
func (c *Codec) Decode(tok string, secret []byte) (Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, classify(err)
	}
	if !parsed.Valid {
		return Claims{}, ErrMalformed
	}
	return claims, nil
}

// Peek reads the claims without verifying the signature. The result is
// untrusted and may only be used to choose which secret to verify with.
func (c *Codec) Peek(tok string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}
