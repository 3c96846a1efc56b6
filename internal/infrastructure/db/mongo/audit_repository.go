package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
)

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	coll *mongo.Collection
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) ports.AuditRepository {
	return &AuditRepository{coll: db.Collection(eventsCollection)}
}

type auditDoc struct {
	Kind        string    `bson:"kind"`
	UserID      string    `bson:"user_id,omitempty"`
	Username    string    `bson:"username,omitempty"`
	Realm       string    `bson:"realm,omitempty"`
	Outcome     string    `bson:"outcome"`
	At          time.Time `bson:"at"`
	ProcessedAt time.Time `bson:"processed_at"`
}

// InsertEvent persists an authentication event to the auth_events collection.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	doc := auditDoc{
		Kind:        string(event.Kind),
		UserID:      event.UserID,
		Username:    event.Username,
		Realm:       event.Realm,
		Outcome:     event.Outcome,
		At:          event.At.UTC(),
		ProcessedAt: time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
