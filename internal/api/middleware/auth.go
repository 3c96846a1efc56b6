package middleware

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/token"
	"github.com/sirpyerre/realm-auth/internal/pkg/metrics"
)

// Context keys set by Auth.
const (
	ClaimsKey = "claims"
	RoleKey   = "role"
	UserIDKey = "user_id"
)

// Auth verifies the bearer token against the global secret and injects the
// claims into the echo context. Failures are returned as domain errors for
// the central error handler.
func Auth(guard *token.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := guard.Authenticate(c.Request().Header)
			if err != nil {
				metrics.GuardRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
				return err
			}

			c.Set(ClaimsKey, claims)
			c.Set(RoleKey, claims.RoleName())
			c.Set(UserIDKey, claims.ID)

			return next(c)
		}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingToken):
		return "missing"
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrInvalidSignature):
		return "signature"
	default:
		return "malformed"
	}
}
