package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sirpyerre/realm-auth/internal/core/ports"
)

type InterventionHandler struct {
	service ports.InterventionService
}

func NewInterventionHandler(service ports.InterventionService) *InterventionHandler {
	return &InterventionHandler{service: service}
}

type realmRequest struct {
	NS string `json:"ns" validate:"required,max=64"`
	DB string `json:"db" validate:"required,max=64"`
}

type joinRequest struct {
	NS   string `json:"ns" validate:"required,max=64"`
	DB   string `json:"db" validate:"required,max=64"`
	Pass string `json:"pass" validate:"required,max=128"`
}

type refreshRequest struct {
	NS    string `json:"ns" validate:"required,max=64"`
	DB    string `json:"db" validate:"required,max=64"`
	Token string `json:"token" validate:"required"`
}

type passResponse struct {
	Pass string `json:"pass"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Guest issues a one-time pass for the caller inside a realm.
//
// @Summary      Inject guest pass
// @Tags         intervention
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      realmRequest  true  "Target realm"
// @Success      200   {object}  passResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /auth/guest [post]
func (h *InterventionHandler) Guest(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req realmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	pass, err := h.service.InjectGuest(c.Request().Context(), claims, ports.RealmRef{Namespace: req.NS, Partition: req.DB})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, passResponse{Pass: pass})
}

// Join exchanges a one-time pass for a realm token.
//
// @Summary      Join realm
// @Tags         intervention
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      joinRequest  true  "Realm and pass"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/join [post]
func (h *InterventionHandler) Join(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	var req joinRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tok, err := h.service.Join(c.Request().Context(), claims, ports.JoinInput{Namespace: req.NS, Partition: req.DB, Pass: req.Pass})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: tok})
}

// Refresh re-signs a still valid token in its own realm.
//
// @Summary      Refresh token
// @Tags         intervention
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Token and its realm"
// @Success      200   {object}  tokenResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/refresh [post]
func (h *InterventionHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	tok, err := h.service.Refresh(c.Request().Context(), ports.RefreshInput{Namespace: req.NS, Partition: req.DB, Token: req.Token})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tokenResponse{Token: tok})
}
