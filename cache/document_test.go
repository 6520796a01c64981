package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweetpotato0/mountdoom/store"
)

// failingStore simulates a document store whose queries error.
type failingStore struct {
	store.DocumentStore
}

func (f *failingStore) QueryExactMatch(ctx context.Context, collection string, filter map[string]any, out any) error {
	return errors.New("network unreachable")
}

func TestDocumentCacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	c := NewDocumentCache(store.NewInMemoryStore(), "")

	if _, ok := c.Find(ctx, "prompt", "customer", "v1"); ok {
		t.Fatal("Expected miss on empty cache")
	}

	record := &Record{
		Prompt:         "prompt",
		AgentName:      "customer",
		AgentVersion:   "v1",
		ResponseText:   "hello",
		TokensUsed:     12,
		ConversationID: "conv-1",
	}
	if err := c.Save(ctx, record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok := c.Find(ctx, "prompt", "customer", "v1")
	if !ok {
		t.Fatal("Expected hit after save")
	}
	if got.ResponseText != "hello" || got.TokensUsed != 12 {
		t.Errorf("Unexpected cached record: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Save should stamp CreatedAt")
	}
}

func TestDocumentCacheVersionPartitions(t *testing.T) {
	ctx := context.Background()
	c := NewDocumentCache(store.NewInMemoryStore(), "")

	c.Save(ctx, &Record{Prompt: "p", AgentName: "a", AgentVersion: "v1", ResponseText: "old"})

	// A changed instruction version must not see the v1 entry.
	if _, ok := c.Find(ctx, "p", "a", "v2"); ok {
		t.Error("Expected miss for a different agent version")
	}
	if _, ok := c.Find(ctx, "p", "a", "v1"); !ok {
		t.Error("Expected hit for the original version")
	}
}

func TestDocumentCacheStoreFailureIsSoft(t *testing.T) {
	c := NewDocumentCache(&failingStore{}, "")

	// A store error must surface as a miss, never as an error.
	if _, ok := c.Find(context.Background(), "p", "a", "v1"); ok {
		t.Error("Expected miss when the store query fails")
	}
}

func TestDocumentCacheTieBreak(t *testing.T) {
	ctx := context.Background()
	ds := store.NewInMemoryStore()
	c := NewDocumentCache(ds, "")

	// Simulate a racing duplicate write under a different storage key.
	older := &Record{
		Prompt: "p", AgentName: "a", AgentVersion: "v1",
		ResponseText: "older", CreatedAt: time.Now().Add(-time.Hour),
	}
	ds.Put(ctx, DefaultCollection, "rogue-duplicate", older)
	c.Save(ctx, &Record{Prompt: "p", AgentName: "a", AgentVersion: "v1", ResponseText: "newer"})

	got, ok := c.Find(ctx, "p", "a", "v1")
	if !ok {
		t.Fatal("Expected hit")
	}
	if got.ResponseText != "newer" {
		t.Errorf("Expected most recent record to win, got %s", got.ResponseText)
	}
}

func TestKeyIsStable(t *testing.T) {
	a := Key("p", "agent", "v1")
	b := Key("p", "agent", "v1")
	if a != b {
		t.Error("Key should be deterministic")
	}
	if Key("p", "agent", "v2") == a {
		t.Error("Key should change with version")
	}
	if Key("p\x00agent", "", "v1") == Key("p", "agent", "v1") {
		t.Error("Key fields should be delimited")
	}
}
