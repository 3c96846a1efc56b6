package ports

import (
	"context"
	"time"
)

// RealmRef names an intervention realm's isolated partition.
type RealmRef struct {
	Namespace string
	Partition string
}

// RealmRepository manages one-time passes inside realm partitions and
// resolves realm signing secrets.
type RealmRepository interface {
	// StampPass stores a hash of pass as the current one-time pass of
	// userID inside realm, replacing any previous one.
	StampPass(ctx context.Context, realm RealmRef, userID, pass string, expiresAt time.Time) error

	// ConsumePass finds the realm user holding an unexpired pass, clears it
	// and returns the user id. No match yields domain.ErrInvalidCredentials.
	ConsumePass(ctx context.Context, realm RealmRef, pass string) (string, error)

	// ProjectSecret returns the signing secret of the project named
	// partition, or domain.ErrRealmNotFound.
	ProjectSecret(ctx context.Context, partition string) (string, error)
}
