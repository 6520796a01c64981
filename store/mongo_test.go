package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
)

// TestMongoStore exercises the MongoDB document store.
// Note: this test requires a running MongoDB server.
// Set the MONGODB_URI environment variable to run it against a real database.
func TestMongoStore(t *testing.T) {
	mongoURI := os.Getenv("MONGODB_URI")
	if mongoURI == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB store tests")
	}

	config := &MongoConfig{
		URI:      mongoURI,
		Database: "mountdoom_test",
	}
	s, err := NewMongoStore(config)
	if err != nil {
		t.Skipf("Failed to connect to MongoDB: %v", err)
	}
	defer s.Close(context.Background())

	ctx := context.Background()
	const collection = "records_test"

	if err := s.EnsureIndexes(ctx, collection); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}

	t.Run("put and get", func(t *testing.T) {
		rec := testRecord{Name: "mongo", Value: "v1", CreatedAt: time.Now().UTC()}
		if err := s.Put(ctx, collection, "m1", rec); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		var got testRecord
		if err := s.Get(ctx, collection, "m1", &got); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Value != "v1" {
			t.Errorf("Expected value v1, got %s", got.Value)
		}
	})

	t.Run("query exact match", func(t *testing.T) {
		var got testRecord
		err := s.QueryExactMatch(ctx, collection, map[string]any{"name": "mongo"}, &got)
		if err != nil {
			t.Fatalf("QueryExactMatch failed: %v", err)
		}

		err = s.QueryExactMatch(ctx, collection, map[string]any{"name": "absent"}, &got)
		if !errors.Is(err, mderrors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.Delete(ctx, collection, "m1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if err := s.Delete(ctx, collection, "m1"); !errors.Is(err, mderrors.ErrNotFound) {
			t.Errorf("Expected ErrNotFound deleting twice, got %v", err)
		}
	})
}
