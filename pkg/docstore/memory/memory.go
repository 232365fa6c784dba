package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/google/uuid"
)

// Store keeps documents in process memory in insertion order. It is used when
// no external backend is configured and as the store behind service tests.
type Store struct {
	mu   sync.RWMutex
	docs []docstore.Document
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, err := s.indexOf(filter)
	if err != nil {
		return nil, err
	}
	if idx == -1 {
		return nil, docstore.ErrNotFound
	}
	return s.docs[idx].Clone(), nil
}

func (s *Store) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := validateID(filter); err != nil {
		return nil, err
	}
	found := make([]docstore.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		if matches(doc, filter) {
			found = append(found, doc.Clone())
		}
	}
	if len(opts.Sort) > 0 {
		sort.SliceStable(found, func(i, j int) bool {
			return less(found[i], found[j], opts.Sort)
		})
	}
	if opts.Limit > 0 && int64(len(found)) > opts.Limit {
		found = found[:opts.Limit]
	}
	return found, nil
}

func (s *Store) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := doc.Clone()
	if stored == nil {
		stored = docstore.Document{}
	}
	id := uuid.NewString()
	stored[docstore.IDField] = id
	s.docs = append(s.docs, stored)
	return id, nil
}

func (s *Store) UpdateOne(ctx context.Context, filter docstore.Filter, set docstore.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.indexOf(filter)
	if err != nil {
		return false, err
	}
	if idx == -1 {
		return false, nil
	}
	for k, v := range set.Clone() {
		if k == docstore.IDField {
			continue
		}
		s.docs[idx][k] = v
	}
	return true, nil
}

func (s *Store) DeleteOne(ctx context.Context, filter docstore.Filter) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, err := s.indexOf(filter)
	if err != nil {
		return false, err
	}
	if idx == -1 {
		return false, nil
	}
	s.docs = append(s.docs[:idx], s.docs[idx+1:]...)
	return true, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return nil
}

// Cleanup removes every document.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
}

func (s *Store) indexOf(filter docstore.Filter) (int, error) {
	if err := validateID(filter); err != nil {
		return -1, err
	}
	for i, doc := range s.docs {
		if matches(doc, filter) {
			return i, nil
		}
	}
	return -1, nil
}

func validateID(filter docstore.Filter) error {
	id, ok := filter[docstore.IDField]
	if !ok {
		return nil
	}
	idString, isString := id.(string)
	if !isString {
		return fmt.Errorf("%w: %v", docstore.ErrInvalidID, id)
	}
	if _, err := uuid.Parse(idString); err != nil {
		return fmt.Errorf("%w: %s", docstore.ErrInvalidID, idString)
	}
	return nil
}

func matches(doc docstore.Document, filter docstore.Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func less(a, b docstore.Document, fields []docstore.SortField) bool {
	for _, f := range fields {
		av := fmt.Sprint(a[f.Field])
		bv := fmt.Sprint(b[f.Field])
		if av == bv {
			continue
		}
		if f.Desc {
			return av > bv
		}
		return av < bv
	}
	return false
}
