package ports

import (
	"context"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/token"
)

// SignupInput is the transport-independent signup request.
type SignupInput struct {
	Username  string
	Password  string // optional
	ProjectID string // optional, "projects:<key>"
}

// AuthService covers the global realm: signup, login and session reload.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*domain.AuthUser, error)
	Login(ctx context.Context, username, password string) (*domain.AuthUser, error)
	Session(ctx context.Context, claims token.Claims) (*domain.AuthUser, error)
}
