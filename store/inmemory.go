package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
)

// InMemoryStore implements DocumentStore with process-local maps. Intended
// for tests and local development; documents round-trip through JSON so the
// record types behave the same as against a real backend.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryDocument
	seq         int64
}

type memoryDocument struct {
	key  string
	raw  json.RawMessage
	seq  int64
	view map[string]any
}

// NewInMemoryStore creates an empty in-memory document store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		collections: make(map[string]map[string]*memoryDocument),
	}
}

// Put upserts a document by key.
func (s *InMemoryStore) Put(ctx context.Context, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	var view map[string]any
	if err := json.Unmarshal(raw, &view); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]*memoryDocument)
	}
	s.seq++
	s.collections[collection][key] = &memoryDocument{
		key:  key,
		raw:  raw,
		seq:  s.seq,
		view: view,
	}
	return nil
}

// Get loads a document by key.
func (s *InMemoryStore) Get(ctx context.Context, collection, key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][key]
	if !ok {
		return mderrors.ErrNotFound
	}
	return json.Unmarshal(doc.raw, out)
}

// QueryExactMatch decodes the most recently written matching document.
func (s *InMemoryStore) QueryExactMatch(ctx context.Context, collection string, filter map[string]any, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *memoryDocument
	for _, doc := range s.collections[collection] {
		if !matches(doc.view, filter) {
			continue
		}
		if best == nil || doc.seq > best.seq {
			best = doc
		}
	}
	if best == nil {
		return mderrors.ErrNotFound
	}
	return json.Unmarshal(best.raw, out)
}

// Page decodes an ordered page of documents into out.
func (s *InMemoryStore) Page(ctx context.Context, collection string, opts PageOptions, out any) error {
	orderBy := opts.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}

	s.mu.RLock()
	docs := make([]*memoryDocument, 0, len(s.collections[collection]))
	for _, doc := range s.collections[collection] {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		a := fmt.Sprint(docs[i].view[orderBy])
		b := fmt.Sprint(docs[j].view[orderBy])
		if opts.Descending {
			return a > b
		}
		return a < b
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(docs) {
			docs = nil
		} else {
			docs = docs[opts.Offset:]
		}
	}
	if opts.Limit > 0 && opts.Limit < len(docs) {
		docs = docs[:opts.Limit]
	}

	raws := make([]json.RawMessage, len(docs))
	for i, doc := range docs {
		raws[i] = doc.raw
	}
	encoded, err := json.Marshal(raws)
	if err != nil {
		return fmt.Errorf("failed to encode page: %w", err)
	}
	return json.Unmarshal(encoded, out)
}

// Delete removes a document by key.
func (s *InMemoryStore) Delete(ctx context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection][key]; !ok {
		return mderrors.ErrNotFound
	}
	delete(s.collections[collection], key)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close(ctx context.Context) error {
	return nil
}

// Count returns the number of documents in a collection.
func (s *InMemoryStore) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func matches(view map[string]any, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := view[k]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
