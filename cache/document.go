package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
	"github.com/sweetpotato0/mountdoom/pkg/logging"
	"github.com/sweetpotato0/mountdoom/store"
)

// DefaultCollection is the document store collection holding cache records.
const DefaultCollection = "cached_responses"

// DocumentCache implements Cache on top of the document store.
type DocumentCache struct {
	store      store.DocumentStore
	collection string
	logger     *slog.Logger
}

// NewDocumentCache creates a document-store-backed cache. An empty
// collection name selects DefaultCollection.
func NewDocumentCache(ds store.DocumentStore, collection string) *DocumentCache {
	if collection == "" {
		collection = DefaultCollection
	}
	return &DocumentCache{
		store:      ds,
		collection: collection,
		logger:     logging.WithComponent("cache"),
	}
}

// Find performs an exact-match query. If multiple records match, the store
// returns the most recently written one. Store failures are logged and
// reported as a miss.
func (c *DocumentCache) Find(ctx context.Context, prompt, agentName, agentVersion string) (*Record, bool) {
	filter := map[string]any{
		"prompt":        prompt,
		"agent_name":    agentName,
		"agent_version": agentVersion,
	}

	var record Record
	err := c.store.QueryExactMatch(ctx, c.collection, filter, &record)
	if err != nil {
		if !errors.Is(err, mderrors.ErrNotFound) {
			c.logger.Warn("cache lookup failed, treating as miss",
				"agent", agentName, "error", err)
		}
		return nil, false
	}
	return &record, true
}

// Save persists a record keyed by its triple.
func (c *DocumentCache) Save(ctx context.Context, record *Record) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	key := Key(record.Prompt, record.AgentName, record.AgentVersion)
	return c.store.Put(ctx, c.collection, key, record)
}
