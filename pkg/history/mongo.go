package history

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/certifyhq/certgen/pkg/errors"
	"github.com/certifyhq/certgen/pkg/observability"
)

// MongoConfig configures the Mongo-backed history store.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoStore persists run records in a MongoDB collection, keyed by run ID.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to MongoDB and verifies the connection.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Database == "" {
		cfg.Database = "certgen"
	}
	if cfg.Collection == "" {
		cfg.Collection = "runs"
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

func (s *MongoStore) Save(ctx context.Context, rec *Record) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, rec, opts)
	if err != nil {
		observability.Store().OnStoreError(ctx, "history", err)
		return fmt.Errorf("save run record: %w", err)
	}
	observability.Store().OnStoreSet(ctx, "history")
	return nil
}

func (s *MongoStore) Get(ctx context.Context, runID string) (*Record, error) {
	var rec Record
	err := s.coll.FindOne(ctx, bson.M{"_id": runID}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		observability.Store().OnStoreGet(ctx, "history", false)
		return nil, errors.New(errors.ErrCodeRunNotFound, "run %s not found", runID)
	}
	if err != nil {
		observability.Store().OnStoreError(ctx, "history", err)
		return nil, fmt.Errorf("get run record: %w", err)
	}
	observability.Store().OnStoreGet(ctx, "history", true)
	return &rec, nil
}

func (s *MongoStore) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	opts := options.Find().SetSort(bson.M{"started_at": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		observability.Store().OnStoreError(ctx, "history", err)
		return nil, fmt.Errorf("list run records: %w", err)
	}
	defer cur.Close(ctx)

	var recs []Record
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("decode run records: %w", err)
	}
	return recs, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)
