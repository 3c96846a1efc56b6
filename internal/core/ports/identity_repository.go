package ports

import (
	"context"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
)

// IdentityRepository persists global identities. Password verification
// happens inside the implementation; hashes never leave it.
type IdentityRepository interface {
	// CreateUser atomically creates the user and, when a project is given,
	// its parti role edge on the project's center and its join edge.
	// Returns domain.ErrUserExists on a duplicate username and
	// domain.ErrBadProjectID when the project does not exist.
	CreateUser(ctx context.Context, in domain.NewUser) (*domain.Account, error)

	// FindByCredentials resolves the account whose username and password
	// both match. Any mismatch yields domain.ErrInvalidCredentials.
	FindByCredentials(ctx context.Context, username, password string) (*domain.Account, error)

	// FindByID resolves the account for an already authenticated subject.
	FindByID(ctx context.Context, id string) (*domain.Account, error)
}
