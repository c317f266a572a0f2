package port

import (
	"context"
	"encoding/json"
)

// Document is one record in a collection. Body is the raw JSON document;
// the id lives outside the body, Firestore-style.
type Document struct {
	ID   string
	Body json.RawMessage
}

type FilterOp string

const (
	FilterEq FilterOp = "=="
	FilterGt FilterOp = ">"
)

// Filter is a single field predicate. Equality and numeric greater-than are
// the only operators the services use.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// DocumentStore is the external document collaborator. Every call is atomic
// per document; there is no cross-document transaction guarantee.
type DocumentStore interface {
	// Get returns the document, or (nil, nil) if it does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)

	// List returns every document in the collection.
	List(ctx context.Context, collection string) ([]Document, error)

	// Query returns the documents matching all filters.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)

	// Insert stores a new document and returns its generated id.
	Insert(ctx context.Context, collection string, body any) (string, error)

	// Update merges the partial record into an existing document.
	Update(ctx context.Context, collection, id string, partial map[string]any) error
}
