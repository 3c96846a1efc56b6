package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sirpyerre/realm-auth/internal/api/middleware"
	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/token"
)

// ctxClaims extracts the claims injected by the Auth middleware. Absence
// means the route was mounted without the guard.
func ctxClaims(c echo.Context) (token.Claims, error) {
	claims, ok := c.Get(middleware.ClaimsKey).(token.Claims)
	if !ok || claims.ID == "" {
		return token.Claims{}, domain.ErrMissingToken
	}
	return claims, nil
}
