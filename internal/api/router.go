package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sirpyerre/realm-auth/internal/api/handler"
	"github.com/sirpyerre/realm-auth/internal/api/middleware"
	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
	"github.com/sirpyerre/realm-auth/internal/core/token"
)

// Deps are the collaborators the router mounts.
type Deps struct {
	Log          zerolog.Logger
	OriginURL    string
	Guard        *token.Guard
	Auth         ports.AuthService
	Intervention ports.InterventionService
	Readiness    map[string]handler.Check
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{d.OriginURL},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		MaxAge:       int((12 * time.Hour).Seconds()),
	}))
	e.Use(requestLogger(d.Log))

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Auth)
	interventionHandler := handler.NewInterventionHandler(d.Intervention)
	guard := middleware.Auth(d.Guard)

	auth := e.Group("/auth")
	auth.POST("/signup", authHandler.Signup)
	auth.POST("/login", authHandler.Login)
	auth.GET("/refresh", authHandler.Session, guard)
	auth.POST("/refresh", interventionHandler.Refresh)
	auth.POST("/guest", interventionHandler.Guest, guard, middleware.RBAC(domain.RolesExcept(domain.RoleGuest)...))
	auth.POST("/join", interventionHandler.Join, guard)

	// --- Health probes and metrics (no auth required) ---
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(d.Readiness, d.Log).Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
