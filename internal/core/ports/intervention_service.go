package ports

import (
	"context"

	"github.com/sirpyerre/realm-auth/internal/core/token"
)

// JoinInput identifies a realm and the one-time pass presented for it.
type JoinInput struct {
	Namespace string
	Partition string
	Pass      string
}

// RefreshInput carries a previously issued token and its routing key.
type RefreshInput struct {
	Namespace string
	Partition string
	Token     string
}

// InterventionService covers project realms: guest passes, join and
// token refresh.
type InterventionService interface {
	InjectGuest(ctx context.Context, claims token.Claims, realm RealmRef) (string, error)
	Join(ctx context.Context, claims token.Claims, in JoinInput) (string, error)
	Refresh(ctx context.Context, in RefreshInput) (string, error)
}
