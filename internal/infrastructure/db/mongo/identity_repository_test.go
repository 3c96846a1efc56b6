package mongo

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/sirpyerre/realm-auth/internal/infrastructure/crypto"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
)

func TestAccountRow_Decode(t *testing.T) {
	oid := primitive.NewObjectID()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	raw, err := bson.Marshal(bson.M{
		"_id":           oid,
		"username":      "alice",
		"password_hash": "$2a$10$hash",
		"project":       "p1",
		"created_at":    created,
		"project_doc":   bson.M{"_id": "p1", "name": "trial", "state": "active", "token": "s3cret", "center": "c1"},
		"center_doc":    bson.M{"_id": "c1", "name": "centro"},
		"role_doc":      bson.M{"in": oid.Hex(), "out": "c1", "role": "coord"},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var row accountRow
	if err := bson.Unmarshal(raw, &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if row.User.PasswordHash != "$2a$10$hash" {
		t.Fatalf("expected inline user fields, got %+v", row.User)
	}

	acc := row.toAccount()
	if acc.User.ID != oid.Hex() || acc.User.Username != "alice" || !acc.User.CreatedAt.Equal(created) {
		t.Fatalf("unexpected user: %+v", acc.User)
	}
	if acc.Project == nil || acc.Project.Secret != "s3cret" || acc.Project.Name != "trial" {
		t.Fatalf("unexpected project: %+v", acc.Project)
	}
	if acc.CenterName != "centro" {
		t.Fatalf("unexpected center: %q", acc.CenterName)
	}
	if acc.Role == nil || *acc.Role != domain.RoleCoord {
		t.Fatalf("unexpected role: %v", acc.Role)
	}
}

func TestAccountRow_GlobalOnly(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"_id": primitive.NewObjectID(), "username": "bob", "created_at": time.Now()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var row accountRow
	if err := bson.Unmarshal(raw, &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	acc := row.toAccount()
	if acc.Project != nil || acc.Role != nil || acc.CenterName != "" {
		t.Fatalf("expected a global-only account, got %+v", acc)
	}
	if acc.Realm() != nil {
		t.Fatalf("expected no realm")
	}
}

func TestAccountRow_GlobalOnlyRole(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"_id": primitive.NewObjectID(), "username": "carol", "role": "parti"})
	require.NoError(t, err)

	var row accountRow
	require.NoError(t, bson.Unmarshal(raw, &row))

	acc := row.toAccount()
	require.NotNil(t, acc.Role)
	assert.Equal(t, domain.RoleParti, *acc.Role)
	assert.Nil(t, acc.Realm())
}

func TestAccountRow_ProjectUserIgnoresDocumentRole(t *testing.T) {
	raw, err := bson.Marshal(bson.M{
		"_id":         primitive.NewObjectID(),
		"username":    "dana",
		"project":     "p1",
		"role":        "parti",
		"project_doc": bson.M{"_id": "p1", "name": "trial", "token": "s3cret", "center": "c1"},
		"center_doc":  bson.M{"_id": "c1", "name": "centro"},
	})
	require.NoError(t, err)

	var row accountRow
	require.NoError(t, bson.Unmarshal(raw, &row))

	// no edge in the project's center means no role there
	assert.Nil(t, row.toAccount().Role)
}

func TestAccountPipeline_RoleScopedToCenter(t *testing.T) {
	pipeline := accountPipeline(bson.D{{Key: "_id", Value: primitive.NewObjectID()}})

	var roleLookup bson.D
	for _, stage := range pipeline {
		if stage[0].Key != "$lookup" {
			continue
		}
		spec := stage[0].Value.(bson.D)
		if spec.Map()["from"] == roledCollection {
			roleLookup = spec
		}
	}
	require.NotNil(t, roleLookup, "missing role lookup")

	raw, err := bson.Marshal(roleLookup)
	require.NoError(t, err)
	doc := bson.Raw(raw)
	assert.Equal(t, "$center_doc._id", doc.Lookup("let", "cid").StringValue())

	conds, err := doc.Lookup("pipeline", "0", "$match", "$expr", "$and").Array().Values()
	require.NoError(t, err)
	require.Len(t, conds, 2)
	assert.Equal(t, "$out", conds[1].Document().Lookup("$eq", "0").StringValue())
	assert.Equal(t, "$$cid", conds[1].Document().Lookup("$eq", "1").StringValue())
}

func TestAccountPipeline_MatchFirst(t *testing.T) {
	match := bson.D{{Key: "username", Value: "alice"}}
	pipeline := accountPipeline(match)

	if len(pipeline) != 8 {
		t.Fatalf("expected 8 stages, got %d", len(pipeline))
	}
	if pipeline[0][0].Key != "$match" {
		t.Fatalf("expected $match first, got %s", pipeline[0][0].Key)
	}
	lookups := 0
	for _, stage := range pipeline {
		if stage[0].Key == "$lookup" {
			lookups++
		}
	}
	if lookups != 3 {
		t.Fatalf("expected 3 lookups, got %d", lookups)
	}
}

const testUsersNS = "realm_auth.users"

func mustBcrypt(t testing.TB, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func legacyArgon2id(t testing.TB, password string) string {
	t.Helper()
	salt := make([]byte, 16)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	hash := argon2.IDKey([]byte(password), salt, 1, 8*1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, 8*1024, 1, 1,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func commandNames(mt *mtest.T) []string {
	var names []string
	for _, ev := range mt.GetAllStartedEvents() {
		names = append(names, ev.CommandName)
	}
	return names
}

func TestIdentityRepository_CreateUser(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("global only persists parti", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		acc, err := repo.CreateUser(context.Background(), domain.NewUser{Username: "alice", Password: "pw"})
		require.NoError(mt, err)
		require.NotNil(mt, acc.Role)
		assert.Equal(mt, domain.RoleParti, *acc.Role)
		assert.Nil(mt, acc.Project)

		assert.Equal(mt, []string{"insert", "commitTransaction"}, commandNames(mt))
		inserted := mt.GetAllStartedEvents()[0].Command.Lookup("documents", "0").Document()
		assert.Equal(mt, "parti", inserted.Lookup("role").StringValue())
		assert.Equal(mt, "alice", inserted.Lookup("username").StringValue())
		hash := inserted.Lookup("password_hash").StringValue()
		assert.True(mt, crypto.VerifyPassword("pw", hash))
	})

	mt.Run("with project writes edges in one transaction", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "realm_auth.projects", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "p1"}, {Key: "name", Value: "trial"}, {Key: "state", Value: "active"},
				{Key: "token", Value: "s3cret"}, {Key: "center", Value: "c1"},
			}),
			mtest.CreateCursorResponse(0, "realm_auth.centers", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: "c1"}, {Key: "name", Value: "centro"},
			}),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(),
		)

		acc, err := repo.CreateUser(context.Background(), domain.NewUser{Username: "bob", Password: "pw", ProjectKey: "p1"})
		require.NoError(mt, err)
		require.NotNil(mt, acc.Project)
		assert.Equal(mt, "trial", acc.Project.Name)
		assert.Equal(mt, "s3cret", acc.Project.Secret)
		assert.Equal(mt, "centro", acc.CenterName)
		require.NotNil(mt, acc.Role)
		assert.Equal(mt, domain.RoleParti, *acc.Role)

		assert.Equal(mt, []string{"insert", "find", "find", "insert", "insert", "commitTransaction"}, commandNames(mt))
		events := mt.GetAllStartedEvents()
		_, err = events[0].Command.LookupErr("documents", "0", "role")
		assert.Error(mt, err, "project users keep their role on the edge only")
		edge := events[3].Command.Lookup("documents", "0").Document()
		assert.Equal(mt, acc.User.ID, edge.Lookup("in").StringValue())
		assert.Equal(mt, "c1", edge.Lookup("out").StringValue())
		assert.Equal(mt, "parti", edge.Lookup("role").StringValue())
	})

	mt.Run("unknown project rolls back", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCursorResponse(0, "realm_auth.projects", mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
		)

		_, err := repo.CreateUser(context.Background(), domain.NewUser{Username: "bob", ProjectKey: "missing"})
		assert.ErrorIs(mt, err, domain.ErrBadProjectID)
		assert.ErrorIs(mt, err, domain.ErrBadInput)

		names := commandNames(mt)
		assert.Equal(mt, []string{"insert", "find", "abortTransaction"}, names)
		assert.NotContains(mt, names, "commitTransaction")
	})

	mt.Run("duplicate username", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"}),
			mtest.CreateSuccessResponse(),
		)

		_, err := repo.CreateUser(context.Background(), domain.NewUser{Username: "alice", Password: "pw"})
		assert.ErrorIs(mt, err, domain.ErrUserExists)
		assert.NotContains(mt, commandNames(mt), "commitTransaction")
	})

	mt.Run("store failure is internal", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}),
			mtest.CreateSuccessResponse(),
		)

		_, err := repo.CreateUser(context.Background(), domain.NewUser{Username: "alice"})
		assert.ErrorIs(mt, err, domain.ErrInternal)
	})
}

func TestIdentityRepository_FindByCredentials(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	oid := primitive.NewObjectID()

	userRow := func(hash string) bson.D {
		return bson.D{
			{Key: "_id", Value: oid},
			{Key: "username", Value: "alice"},
			{Key: "password_hash", Value: hash},
			{Key: "role", Value: "parti"},
			{Key: "created_at", Value: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		}
	}

	mt.Run("correct password", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testUsersNS, mtest.FirstBatch, userRow(mustBcrypt(mt, "pw"))))

		acc, err := repo.FindByCredentials(context.Background(), "alice", "pw")
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), acc.User.ID)
		assert.Equal(mt, "alice", acc.User.Username)
		require.NotNil(mt, acc.Role)
		assert.Equal(mt, domain.RoleParti, *acc.Role)
		assert.Equal(mt, []string{"aggregate"}, commandNames(mt))
	})

	mt.Run("wrong password", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testUsersNS, mtest.FirstBatch, userRow(mustBcrypt(mt, "pw"))))

		_, err := repo.FindByCredentials(context.Background(), "alice", "nope")
		assert.ErrorIs(mt, err, domain.ErrInvalidCredentials)
	})

	mt.Run("unknown user", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testUsersNS, mtest.FirstBatch))

		_, err := repo.FindByCredentials(context.Background(), "ghost", "pw")
		assert.ErrorIs(mt, err, domain.ErrInvalidCredentials)
	})

	mt.Run("legacy hash is upgraded", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, testUsersNS, mtest.FirstBatch, userRow(legacyArgon2id(mt, "pw"))),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		_, err := repo.FindByCredentials(context.Background(), "alice", "pw")
		require.NoError(mt, err)
		assert.Equal(mt, []string{"aggregate", "update"}, commandNames(mt))

		update := mt.GetAllStartedEvents()[1].Command.Lookup("updates", "0")
		assert.Equal(mt, oid, update.Document().Lookup("q", "_id").ObjectID())
		newHash := update.Document().Lookup("u", "$set", "password_hash").StringValue()
		assert.False(mt, crypto.NeedsRehash(newHash))
		assert.True(mt, crypto.VerifyPassword("pw", newHash))
	})

	mt.Run("store failure is internal", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "boom"}))

		_, err := repo.FindByCredentials(context.Background(), "alice", "pw")
		assert.ErrorIs(mt, err, domain.ErrInternal)
		assert.NotErrorIs(mt, err, domain.ErrInvalidCredentials)
	})
}

func TestIdentityRepository_FindByID(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	oid := primitive.NewObjectID()

	mt.Run("global only", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testUsersNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "username", Value: "carol"},
			{Key: "role", Value: "parti"},
		}))

		acc, err := repo.FindByID(context.Background(), oid.Hex())
		require.NoError(mt, err)
		assert.Equal(mt, oid.Hex(), acc.User.ID)
		assert.Equal(mt, "carol", acc.User.Username)
		require.NotNil(mt, acc.Role)
		assert.Equal(mt, domain.RoleParti, *acc.Role)

		match := mt.GetStartedEvent().Command.Lookup("pipeline", "0", "$match", "_id")
		assert.Equal(mt, oid, match.ObjectID())
	})

	mt.Run("project user", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testUsersNS, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: oid},
			{Key: "username", Value: "dana"},
			{Key: "project", Value: "p1"},
			{Key: "project_doc", Value: bson.D{{Key: "_id", Value: "p1"}, {Key: "name", Value: "trial"}, {Key: "token", Value: "s3cret"}, {Key: "center", Value: "c1"}}},
			{Key: "center_doc", Value: bson.D{{Key: "_id", Value: "c1"}, {Key: "name", Value: "centro"}}},
			{Key: "role_doc", Value: bson.D{{Key: "in", Value: oid.Hex()}, {Key: "out", Value: "c1"}, {Key: "role", Value: "thera"}}},
		}))

		acc, err := repo.FindByID(context.Background(), oid.Hex())
		require.NoError(mt, err)
		require.NotNil(mt, acc.Role)
		assert.Equal(mt, domain.RoleThera, *acc.Role)
		require.NotNil(mt, acc.Realm())
		assert.Equal(mt, "trial", acc.Realm().Partition)
	})

	mt.Run("unknown id", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())
		mt.AddMockResponses(mtest.CreateCursorResponse(0, testUsersNS, mtest.FirstBatch))

		_, err := repo.FindByID(context.Background(), oid.Hex())
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
	})

	mt.Run("malformed id", func(mt *mtest.T) {
		repo := NewIdentityRepository(mt.DB, zerolog.Nop())

		_, err := repo.FindByID(context.Background(), "not-an-object-id")
		assert.ErrorIs(mt, err, domain.ErrUserNotFound)
		assert.Empty(mt, mt.GetAllStartedEvents())
	})
}
