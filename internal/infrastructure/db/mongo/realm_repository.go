package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
	"github.com/sirpyerre/realm-auth/internal/infrastructure/crypto"
)

const (
	realmUsersCollection = "users"
	realmSeparator       = "__"
	maxDatabaseNameLen   = 63
)

// RealmRepository implements ports.RealmRepository. Each realm lives in
// its own database named "<ns>__<db>"; project secrets are read from the
// global database.
type RealmRepository struct {
	client  *mongo.Client
	global  *mongo.Database
	now     func() time.Time
	indexed sync.Map
}

// NewRealmRepository creates a RealmRepository rooted at the global database.
func NewRealmRepository(global *mongo.Database) *RealmRepository {
	return &RealmRepository{client: global.Client(), global: global, now: time.Now}
}

var _ ports.RealmRepository = (*RealmRepository)(nil)

// RealmDatabaseName maps a realm reference onto its database name.
func RealmDatabaseName(realm ports.RealmRef) (string, error) {
	for _, part := range []string{realm.Namespace, realm.Partition} {
		if part == "" || strings.Contains(part, realmSeparator) || strings.ContainsAny(part, "/\\. \"$\x00") {
			return "", domain.ErrBadRealm
		}
	}
	name := realm.Namespace + realmSeparator + realm.Partition
	if len(name) > maxDatabaseNameLen {
		return "", domain.ErrBadRealm
	}
	return name, nil
}

func (r *RealmRepository) users(ctx context.Context, realm ports.RealmRef) (*mongo.Collection, error) {
	name, err := RealmDatabaseName(realm)
	if err != nil {
		return nil, err
	}
	coll := r.client.Database(name).Collection(realmUsersCollection)
	if _, done := r.indexed.Load(name); !done {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "pass_hash", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("users_pass_hash"),
		})
		if err != nil {
			return nil, fmt.Errorf("ensure realm index: %w", err)
		}
		r.indexed.Store(name, struct{}{})
	}
	return coll, nil
}

// StampPass stores the digest of pass on the realm user userID, creating
// the realm user if needed. Any previous pass is replaced.
func (r *RealmRepository) StampPass(ctx context.Context, realm ports.RealmRef, userID, pass string, expiresAt time.Time) error {
	coll, err := r.users(ctx, realm)
	if err != nil {
		if errors.Is(err, domain.ErrBadInput) {
			return err
		}
		return domain.Internal("stamp pass", err)
	}

	_, err = coll.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set": bson.M{
				"pass_hash":       crypto.HashPass(pass),
				"pass_expires_at": expiresAt.UTC(),
			},
			"$setOnInsert": bson.M{"state": "active"},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return domain.Internal("stamp pass", err)
	}
	return nil
}

// ConsumePass atomically clears an unexpired pass and returns the id of
// the realm user that held it.
func (r *RealmRepository) ConsumePass(ctx context.Context, realm ports.RealmRef, pass string) (string, error) {
	coll, err := r.users(ctx, realm)
	if err != nil {
		if errors.Is(err, domain.ErrBadInput) {
			return "", err
		}
		return "", domain.Internal("consume pass", err)
	}

	var doc struct {
		ID string `bson:"_id"`
	}
	err = coll.FindOneAndUpdate(ctx,
		bson.M{
			"pass_hash":       crypto.HashPass(pass),
			"pass_expires_at": bson.M{"$gt": r.now().UTC()},
		},
		bson.M{"$unset": bson.M{"pass_hash": "", "pass_expires_at": ""}},
		options.FindOneAndUpdate().SetProjection(bson.M{"_id": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrInvalidCredentials
		}
		return "", domain.Internal("consume pass", err)
	}
	return doc.ID, nil
}

// ProjectSecret returns the signing secret of the project named partition.
func (r *RealmRepository) ProjectSecret(ctx context.Context, partition string) (string, error) {
	var doc struct {
		Token string `bson:"token"`
	}
	err := r.global.Collection(projectsCollection).FindOne(ctx,
		bson.M{"name": partition},
		options.FindOne().SetProjection(bson.M{"token": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", domain.ErrRealmNotFound
		}
		return "", domain.Internal("project secret", err)
	}
	if doc.Token == "" {
		return "", domain.ErrRealmNotFound
	}
	return doc.Token, nil
}
