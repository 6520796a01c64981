package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
)

// MongoStore implements DocumentStore using MongoDB
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI      string
	Database string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:      "mongodb://localhost:27017",
		Database: "mountdoom",
	}
}

// NewMongoStore creates a new MongoDB-based document store
func NewMongoStore(config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoStore{
		client: client,
		db:     client.Database(config.Database),
	}, nil
}

// EnsureIndexes creates the created_at index used for ordering and
// tie-breaking on the given collections.
func (s *MongoStore) EnsureIndexes(ctx context.Context, collections ...string) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}
	for _, name := range collections {
		if _, err := s.db.Collection(name).Indexes().CreateOne(ctx, indexModel); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", name, err)
		}
	}
	return nil
}

// Put upserts a document by key.
func (s *MongoStore) Put(ctx context.Context, collection, key string, doc any) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": key}

	if _, err := s.db.Collection(collection).ReplaceOne(ctx, filter, doc, opts); err != nil {
		return fmt.Errorf("failed to put document into %s: %w", collection, err)
	}
	return nil
}

// Get loads a document by key.
func (s *MongoStore) Get(ctx context.Context, collection, key string, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": key}).Decode(out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return mderrors.ErrNotFound
		}
		return fmt.Errorf("failed to get document from %s: %w", collection, err)
	}
	return nil
}

// QueryExactMatch decodes the most recently written matching document.
// Ties on the filter are broken by latest created_at.
func (s *MongoStore) QueryExactMatch(ctx context.Context, collection string, filter map[string]any, out any) error {
	query := bson.M{}
	for k, v := range filter {
		query[k] = v
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	err := s.db.Collection(collection).FindOne(ctx, query, opts).Decode(out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return mderrors.ErrNotFound
		}
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return nil
}

// Page decodes an ordered page of documents into out.
func (s *MongoStore) Page(ctx context.Context, collection string, pageOpts PageOptions, out any) error {
	orderBy := pageOpts.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	direction := 1
	if pageOpts.Descending {
		direction = -1
	}

	opts := options.Find().SetSort(bson.D{{Key: orderBy, Value: direction}})
	if pageOpts.Offset > 0 {
		opts.SetSkip(int64(pageOpts.Offset))
	}
	if pageOpts.Limit > 0 {
		opts.SetLimit(int64(pageOpts.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("failed to page %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode page of %s: %w", collection, err)
	}
	return nil
}

// Delete removes a document by key.
func (s *MongoStore) Delete(ctx context.Context, collection, key string) error {
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return fmt.Errorf("failed to delete document from %s: %w", collection, err)
	}
	if result.DeletedCount == 0 {
		return mderrors.ErrNotFound
	}
	return nil
}

// Close closes the MongoDB connection
func (s *MongoStore) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Disconnect(ctx)
}

// Ping checks if MongoDB connection is alive
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
