// Package store defines the document store boundary used for run history
// and cached responses. Documents are a small closed set of record types;
// parsing happens at this boundary, not in callers.
package store

import (
	"context"
)

// PageOptions controls paged reads over a collection.
type PageOptions struct {
	OrderBy    string
	Descending bool
	Offset     int
	Limit      int
}

// DocumentStore persists documents by key into named collections.
// Implementations must support safe concurrent writes keyed by distinct
// document ids.
type DocumentStore interface {
	// Put upserts a document by key.
	Put(ctx context.Context, collection, key string, doc any) error

	// Get loads a document by key into out, or errors.ErrNotFound.
	Get(ctx context.Context, collection, key string, out any) error

	// QueryExactMatch decodes the most recently written document whose
	// fields all equal the filter values into out, or errors.ErrNotFound.
	QueryExactMatch(ctx context.Context, collection string, filter map[string]any, out any) error

	// Page decodes an ordered page of documents into out, a pointer to a
	// slice of the collection's record type.
	Page(ctx context.Context, collection string, opts PageOptions, out any) error

	// Delete removes a document by key; errors.ErrNotFound when absent.
	Delete(ctx context.Context, collection, key string) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
