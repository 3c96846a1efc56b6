package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

type signupRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password,omitempty" validate:"omitempty,max=72"`
	Project  string `json:"project,omitempty" validate:"omitempty,startswith=projects:"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// Signup creates a global identity, optionally bound to a project.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Signup details"
// @Success      200   {object}  domain.AuthUser
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	au, err := h.authService.Signup(c.Request().Context(), ports.SignupInput{
		Username:  req.Username,
		Password:  req.Password,
		ProjectID: req.Project,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, au)
}

// Login authenticates with username and password.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  domain.AuthUser
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	au, err := h.authService.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, au)
}

// Session reissues both tokens for the bearer of a valid global token.
//
// @Summary      Reload session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.AuthUser
// @Failure      401  {object}  errorResponse
// @Router       /auth/refresh [get]
func (h *AuthHandler) Session(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	au, err := h.authService.Session(c.Request().Context(), claims)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, au)
}

// errorResponse documents the error envelope rendered by the API error handler.
type errorResponse struct {
	Error string `json:"error"`
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrBadInput)
	}
	return c.Validate(req)
}
