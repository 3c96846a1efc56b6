package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// Collection names of the global database.
const (
	usersCollection    = "users"
	projectsCollection = "projects"
	centersCollection  = "centers"
	roledCollection    = "roled"
	joinCollection     = "join"
	eventsCollection   = "auth_events"
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the unique indexes the repositories rely on for
// conflict detection. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		usersCollection: {{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_username"),
		}},
		projectsCollection: {{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("projects_name"),
		}},
		roledCollection: {{
			Keys:    bson.D{{Key: "in", Value: 1}, {Key: "out", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("roled_in_out"),
		}},
		joinCollection: {{
			Keys:    bson.D{{Key: "in", Value: 1}, {Key: "out", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("join_in_out"),
		}},
		eventsCollection: {{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "at", Value: -1}},
			Options: options.Index().SetName("auth_events_user_at"),
		}},
	}
	for coll, models := range specs {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", coll, err)
		}
	}
	return nil
}
