package docstore

import (
	"context"
	"errors"
)

// IDField is the key under which every stored document carries its store-assigned identity.
const IDField = "_id"

var (
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned when an identity cannot be interpreted by the backend.
	ErrInvalidID = errors.New("invalid document id")
	// ErrUnavailable marks transient failures (network, timeouts) that are safe to retry.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("duplicate document")
)

// Document is a schemaless record. Nested documents are map[string]any,
// numbers are float64 (or json.Number), arrays are []any.
type Document map[string]any

// ID returns the store-assigned identity of the document, or "" when it has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Filter matches documents whose top-level fields equal the given values.
// A filter on IDField matches by identity.
type Filter map[string]any

type SortField struct {
	Field string
	Desc  bool
}

type FindOptions struct {
	Sort  []SortField
	Limit int64
}

// Store is the persistence collaborator used by the ledger. Implementations
// guarantee single-document atomicity for InsertOne and UpdateOne only.
type Store interface {
	FindOne(ctx context.Context, filter Filter) (Document, error)
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]Document, error)
	InsertOne(ctx context.Context, doc Document) (string, error)
	// UpdateOne sets the given top-level fields on the first matching document.
	// It reports whether a document matched.
	UpdateOne(ctx context.Context, filter Filter, set Document) (bool, error)
	// DeleteOne removes the first matching document and reports whether one was removed.
	DeleteOne(ctx context.Context, filter Filter) (bool, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Clone returns a deep copy of the document so callers never share nested maps with a store.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(cloneValue(map[string]any(t)).(map[string]any))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
