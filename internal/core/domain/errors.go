package domain

import (
	"errors"
	"fmt"
)

// Coarse error kinds surfaced to callers. Store and codec failures are
// wrapped into one of these; the transport maps them to status codes.
var (
	ErrBadInput           = errors.New("bad input")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingToken       = errors.New("missing token")
	ErrInvalidToken       = errors.New("invalid token")
	ErrForbidden          = errors.New("access forbidden")
	ErrTooManyAttempts    = errors.New("too many attempts")
	ErrInternal           = errors.New("internal error")
)

var (
	ErrBadProjectID     = fmt.Errorf("%w: bad project id", ErrBadInput)
	ErrBadRealm         = fmt.Errorf("%w: bad realm", ErrBadInput)
	ErrUserNotFound     = fmt.Errorf("%w: user not found", ErrInternal)
	ErrRealmNotFound    = fmt.Errorf("%w: realm has no registered secret", ErrInternal)
	ErrIdentityMismatch = fmt.Errorf("%w: identity mismatch", ErrInternal)
)

// Internal wraps cause as ErrInternal, keeping it for server-side logs.
func Internal(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, cause)
}
