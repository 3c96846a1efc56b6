package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sirpyerre/realm-auth/internal/core/domain"
	"github.com/sirpyerre/realm-auth/internal/core/ports"
	"github.com/sirpyerre/realm-auth/internal/infrastructure/crypto"
)

// IdentityRepository implements ports.IdentityRepository on the global
// database. Password hashes are read and compared here and never returned.
type IdentityRepository struct {
	db  *mongo.Database
	log zerolog.Logger
	now func() time.Time
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(db *mongo.Database, log zerolog.Logger) *IdentityRepository {
	return &IdentityRepository{db: db, log: log, now: time.Now}
}

var _ ports.IdentityRepository = (*IdentityRepository)(nil)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"password_hash,omitempty"`
	Project      string             `bson:"project,omitempty"`
	Role         domain.Role        `bson:"role,omitempty"`
	WebToken     string             `bson:"web_token,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
}

type projectDoc struct {
	ID     string `bson:"_id"`
	Name   string `bson:"name"`
	State  string `bson:"state"`
	Token  string `bson:"token"`
	Center string `bson:"center"`
}

type centerDoc struct {
	ID   string `bson:"_id"`
	Name string `bson:"name"`
}

type roleEdge struct {
	In   string      `bson:"in"`
	Out  string      `bson:"out"`
	Role domain.Role `bson:"role"`
}

type joinEdge struct {
	In  string `bson:"in"`
	Out string `bson:"out"`
}

// accountRow is the result of accountPipeline.
type accountRow struct {
	User userDoc `bson:",inline"`

	ProjectDoc *projectDoc `bson:"project_doc,omitempty"`
	CenterDoc  *centerDoc  `bson:"center_doc,omitempty"`
	RoleDoc    *roleEdge   `bson:"role_doc,omitempty"`
}

func (u userDoc) toDomain() domain.User {
	return domain.User{
		ID:         u.ID.Hex(),
		Username:   u.Username,
		ProjectKey: u.Project,
		WebToken:   u.WebToken,
		CreatedAt:  u.CreatedAt.UTC(),
	}
}

func (row *accountRow) toAccount() *domain.Account {
	acc := &domain.Account{User: row.User.toDomain()}
	if row.ProjectDoc != nil {
		acc.Project = row.ProjectDoc.toDomain()
	}
	if row.CenterDoc != nil {
		acc.CenterName = row.CenterDoc.Name
	}
	switch {
	case row.RoleDoc != nil:
		acc.Role = row.RoleDoc.Role.Ptr()
	case row.User.Role != "" && row.User.Project == "":
		// global-only identities keep their role on the user document
		acc.Role = row.User.Role.Ptr()
	}
	return acc
}

func (p *projectDoc) toDomain() *domain.Project {
	return &domain.Project{ID: p.ID, Name: p.Name, State: p.State, Secret: p.Token, CenterID: p.Center}
}

// CreateUser inserts the user and, when a project key is given, its parti
// role edge on the project's center and its join edge, all in one
// transaction. A global-only user carries the parti role on its own
// document.
func (r *IdentityRepository) CreateUser(ctx context.Context, in domain.NewUser) (*domain.Account, error) {
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = crypto.HashPassword(in.Password); err != nil {
			return nil, domain.Internal("create user", err)
		}
	}

	sess, err := r.db.Client().StartSession()
	if err != nil {
		return nil, domain.Internal("create user: start session", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return r.createUserTx(sc, in, hash)
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) || errors.Is(err, domain.ErrBadInput) || errors.Is(err, domain.ErrInternal) {
			return nil, err
		}
		return nil, domain.Internal("create user", err)
	}
	return res.(*domain.Account), nil
}

func (r *IdentityRepository) createUserTx(ctx mongo.SessionContext, in domain.NewUser, hash string) (*domain.Account, error) {
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Username:     in.Username,
		PasswordHash: hash,
		Project:      in.ProjectKey,
		CreatedAt:    r.now().UTC().Truncate(time.Millisecond),
	}
	if in.ProjectKey == "" {
		doc.Role = domain.RoleParti
	}
	if _, err := r.db.Collection(usersCollection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	acc := &domain.Account{User: doc.toDomain()}
	if in.ProjectKey == "" {
		acc.Role = doc.Role.Ptr()
		return acc, nil
	}

	var project projectDoc
	if err := r.db.Collection(projectsCollection).FindOne(ctx, bson.M{"_id": in.ProjectKey}).Decode(&project); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrBadProjectID
		}
		return nil, fmt.Errorf("load project: %w", err)
	}

	var center centerDoc
	if err := r.db.Collection(centersCollection).FindOne(ctx, bson.M{"_id": project.Center}).Decode(&center); err != nil {
		return nil, fmt.Errorf("load center %q: %w", project.Center, err)
	}

	userID := doc.ID.Hex()
	if _, err := r.db.Collection(roledCollection).InsertOne(ctx, roleEdge{In: userID, Out: center.ID, Role: domain.RoleParti}); err != nil {
		return nil, fmt.Errorf("insert role edge: %w", err)
	}
	if _, err := r.db.Collection(joinCollection).InsertOne(ctx, joinEdge{In: userID, Out: project.ID}); err != nil {
		return nil, fmt.Errorf("insert join edge: %w", err)
	}

	acc.Project = project.toDomain()
	acc.CenterName = center.Name
	acc.Role = domain.RoleParti.Ptr()
	return acc, nil
}

// FindByCredentials resolves the account whose username and password both
// match. Unknown usernames still pay for one hash comparison.
func (r *IdentityRepository) FindByCredentials(ctx context.Context, username, password string) (*domain.Account, error) {
	row, err := r.findOne(ctx, bson.D{{Key: "username", Value: username}})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			crypto.VerifyPassword(password, "")
			return nil, domain.ErrInvalidCredentials
		}
		return nil, domain.Internal("find by credentials", err)
	}

	if !crypto.VerifyPassword(password, row.User.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if crypto.NeedsRehash(row.User.PasswordHash) {
		r.rehash(ctx, row.User.ID, password)
	}
	return row.toAccount(), nil
}

// FindByID resolves the account of an authenticated subject.
func (r *IdentityRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	row, err := r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.Internal("find by id", err)
	}
	return row.toAccount(), nil
}

func (r *IdentityRepository) findOne(ctx context.Context, match bson.D) (*accountRow, error) {
	cur, err := r.db.Collection(usersCollection).Aggregate(ctx, accountPipeline(match))
	if err != nil {
		return nil, fmt.Errorf("aggregate account: %w", err)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, fmt.Errorf("aggregate account: %w", err)
		}
		return nil, mongo.ErrNoDocuments
	}
	var row accountRow
	if err := cur.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	return &row, nil
}

// accountPipeline resolves a user, its project, the project's center and
// the role held in that center in one round trip.
func accountPipeline(match bson.D) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: projectsCollection},
			{Key: "localField", Value: "project"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "project_doc"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$project_doc"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: centersCollection},
			{Key: "localField", Value: "project_doc.center"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "center_doc"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$center_doc"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: roledCollection},
			{Key: "let", Value: bson.D{
				{Key: "uid", Value: bson.D{{Key: "$toString", Value: "$_id"}}},
				{Key: "cid", Value: "$center_doc._id"},
			}},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$match", Value: bson.D{{Key: "$expr", Value: bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "$eq", Value: bson.A{"$in", "$$uid"}}},
					bson.D{{Key: "$eq", Value: bson.A{"$out", "$$cid"}}},
				}}}}}}},
				bson.D{{Key: "$limit", Value: 1}},
			}},
			{Key: "as", Value: "role_doc"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$role_doc"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
	}
}

// rehash upgrades a legacy hash after a successful login. Failure leaves
// the legacy hash in place.
func (r *IdentityRepository) rehash(ctx context.Context, id primitive.ObjectID, password string) {
	hash, err := crypto.HashPassword(password)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", id.Hex()).Msg("password rehash failed")
		return
	}
	_, err = r.db.Collection(usersCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"password_hash": hash}},
	)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", id.Hex()).Msg("password rehash failed")
	}
}
