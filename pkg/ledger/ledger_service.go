package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/cenkalti/backoff/v4"
	"github.com/enaema/budget-ledger/internal/event_bus"
	"github.com/enaema/budget-ledger/internal/utils"
	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type Service interface {
	// Upsert merges a submission into today's entry, creating it when absent.
	Upsert(ctx context.Context, submission Submission) (Entry, error)
	List(ctx context.Context) ([]Entry, error)
	Aggregate(ctx context.Context) ([]MonthSummary, error)
	// SetExpenses overwrites the expense total of the listed categories of one entry.
	SetExpenses(ctx context.Context, id string, expenses map[string]decimal.Decimal) (Entry, error)
	Delete(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(e event_bus.Event) error
}

type Options struct {
	// RetroactiveLimits applies submitted limits to an existing day too,
	// not only when the day is first created.
	RetroactiveLimits bool
	// MaxRetries bounds retries of a write after a transient store failure. Zero means 3.
	MaxRetries uint64
}

const defaultMaxRetries = 3

type ServiceImpl struct {
	store      docstore.Store
	resolver   DateKeyResolver
	clock      utils.Clock
	publisher  Publisher
	locks      *keyedMutex
	options    Options
	newBackOff func() backoff.BackOff
}

func NewService(
	store docstore.Store,
	resolver DateKeyResolver,
	clock utils.Clock,
	publisher Publisher,
	options Options,
) *ServiceImpl {
	if options.MaxRetries == 0 {
		options.MaxRetries = defaultMaxRetries
	}
	return &ServiceImpl{
		store:      store,
		resolver:   resolver,
		clock:      clock,
		publisher:  publisher,
		locks:      newKeyedMutex(),
		options:    options,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

func (s *ServiceImpl) Upsert(ctx context.Context, submission Submission) (Entry, error) {
	day := s.resolver.Resolve(s.clock.Now())
	unlock := s.locks.Lock(day.Key)
	defer unlock()

	var entry Entry
	var created bool
	err := s.retry(ctx, func() error {
		var err error
		entry, created, err = s.upsertOnce(ctx, day, submission)
		return err
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to upsert ledger entry %s: %w", day.Key, err)
	}

	s.publish(ctx, event_bus.LedgerEntryUpserted, event_bus.LedgerEntryChanged{
		ID:         entry.ID,
		DayKey:     entry.DayKey,
		Created:    created,
		Categories: submission.Order,
	})
	return entry, nil
}

func (s *ServiceImpl) upsertOnce(ctx context.Context, day DayKey, submission Submission) (Entry, bool, error) {
	doc, err := s.store.FindOne(ctx, docstore.Filter{fieldDate: day.Key})
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return Entry{}, false, err
	}
	if err == nil {
		entry, err := s.mergeIntoExisting(ctx, day, documentToEntry(doc), submission)
		return entry, false, err
	}
	entry, err := s.createSeeded(ctx, day, submission)
	return entry, true, err
}

func (s *ServiceImpl) mergeIntoExisting(ctx context.Context, day DayKey, entry Entry, submission Submission) (Entry, error) {
	changed := make(map[string]CategoryRecord, len(submission.Order))
	for _, name := range submission.Order {
		incoming := submission.Categories[name]
		var override *decimal.Decimal
		if limit, ok := submission.Limits[name]; ok && s.options.RetroactiveLimits {
			override = &limit
		}
		var existing *CategoryRecord
		if record, ok := entry.Categories[name]; ok {
			existing = &record
		} else {
			log.Debugf("seeding category %s on existing entry %s", name, day.Key)
		}
		changed[name] = Merge(existing, &incoming, override)
	}
	if s.options.RetroactiveLimits {
		for name, limit := range submission.Limits {
			if _, ok := changed[name]; ok {
				continue
			}
			if record, ok := entry.Categories[name]; ok {
				changed[name] = Merge(&record, nil, &limit)
			}
		}
	}

	set := categoriesToDocument(changed)
	set[fieldMonth] = day.MonthLabel
	set[fieldPeriod] = day.Period
	matched, err := s.store.UpdateOne(ctx, docstore.Filter{fieldDate: day.Key}, set)
	if err != nil {
		return Entry{}, err
	}
	if !matched {
		// The entry vanished between read and write; retrying re-reads and recreates it.
		return Entry{}, fmt.Errorf("%w: entry %s disappeared during update", docstore.ErrUnavailable, day.Key)
	}

	entry.MonthLabel = day.MonthLabel
	entry.Period = day.Period
	for name, record := range changed {
		entry.Categories[name] = record
	}
	return entry, nil
}

func (s *ServiceImpl) createSeeded(ctx context.Context, day DayKey, submission Submission) (Entry, error) {
	prior, err := s.findLatestInPeriod(ctx, day.Period)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		DayKey:     day.Key,
		MonthLabel: day.MonthLabel,
		Period:     day.Period,
		Categories: make(map[string]CategoryRecord, len(KnownCategories)+len(submission.Order)),
	}
	names := append(slices.Clone(KnownCategories), submission.Order...)
	for _, name := range names {
		if _, done := entry.Categories[name]; done {
			continue
		}
		var incoming *CategoryInput
		if input, ok := submission.Categories[name]; ok {
			incoming = &input
		}
		entry.Categories[name] = Merge(nil, incoming, seedLimit(name, submission, incoming, prior))
	}

	id, err := s.store.InsertOne(ctx, entryToDocument(entry))
	if err != nil {
		return Entry{}, err
	}
	entry.ID = id
	log.Infof("created ledger entry %s (%s)", entry.DayKey, entry.ID)
	return entry, nil
}

// seedLimit picks the limit of a new day: explicit limits, then the submitted
// body, then the latest prior day of the same month, then zero. A nil result
// lets Merge take the limit from the submitted body.
func seedLimit(name string, submission Submission, incoming *CategoryInput, prior *Entry) *decimal.Decimal {
	if limit, ok := submission.Limits[name]; ok {
		return &limit
	}
	if incoming != nil && incoming.Limit != nil {
		return nil
	}
	if prior != nil {
		if record, ok := prior.Categories[name]; ok {
			return decimalPtr(record.Limit)
		}
	}
	return decimalPtr(decimal.Zero)
}

func (s *ServiceImpl) findLatestInPeriod(ctx context.Context, period string) (*Entry, error) {
	docs, err := s.store.Find(ctx, docstore.Filter{fieldPeriod: period}, docstore.FindOptions{
		Sort:  []docstore.SortField{{Field: fieldDate, Desc: true}},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		log.Debugf("no prior entry in %s, limits default to zero", period)
		return nil, nil
	}
	prior := documentToEntry(docs[0])
	return &prior, nil
}

func (s *ServiceImpl) List(ctx context.Context) ([]Entry, error) {
	docs, err := s.store.Find(ctx, docstore.Filter{}, docstore.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, documentToEntry(doc))
	}
	return entries, nil
}

func (s *ServiceImpl) Aggregate(ctx context.Context) ([]MonthSummary, error) {
	entries, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Collect(Aggregate(entries)), nil
}

func (s *ServiceImpl) SetExpenses(ctx context.Context, id string, expenses map[string]decimal.Decimal) (Entry, error) {
	if len(expenses) == 0 {
		return Entry{}, ErrNoOpUpdate
	}
	current, err := s.findByID(ctx, id)
	if err != nil {
		return Entry{}, err
	}
	unlock := s.locks.Lock(current.DayKey)
	defer unlock()

	var entry Entry
	var written []string
	err = s.retry(ctx, func() error {
		var err error
		entry, written, err = s.setExpensesOnce(ctx, id, expenses)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNoOpUpdate) || errors.Is(err, ErrValidation) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("failed to update expenses of %s: %w", id, err)
	}

	s.publish(ctx, event_bus.LedgerEntryUpdated, event_bus.LedgerEntryChanged{
		ID:         entry.ID,
		DayKey:     entry.DayKey,
		Categories: written,
	})
	return entry, nil
}

func (s *ServiceImpl) setExpensesOnce(ctx context.Context, id string, expenses map[string]decimal.Decimal) (Entry, []string, error) {
	entry, err := s.findByID(ctx, id)
	if err != nil {
		return Entry{}, nil, err
	}

	changed := make(map[string]CategoryRecord, len(expenses))
	for name, amount := range expenses {
		record, ok := entry.Categories[name]
		if ok && record.Expense.Equal(amount) {
			continue
		}
		if !ok {
			if !IsKnownCategory(name) {
				log.Warnf("setting expense on unknown category %q", name)
			}
			record = Merge(nil, nil, decimalPtr(decimal.Zero))
		}
		record.Expense = amount
		changed[name] = record
	}
	if len(changed) == 0 {
		return Entry{}, nil, ErrNoOpUpdate
	}

	matched, err := s.store.UpdateOne(ctx, docstore.Filter{docstore.IDField: id}, categoriesToDocument(changed))
	if err != nil {
		return Entry{}, nil, mapStoreError(err)
	}
	if !matched {
		return Entry{}, nil, ErrNotFound
	}

	written := make([]string, 0, len(changed))
	for name, record := range changed {
		entry.Categories[name] = record
		written = append(written, name)
	}
	slices.Sort(written)
	return entry, written, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteOne(ctx, docstore.Filter{docstore.IDField: id})
	if err != nil {
		err = mapStoreError(err)
		if errors.Is(err, ErrValidation) {
			return err
		}
		return fmt.Errorf("failed to delete ledger entry %s: %w", id, err)
	}
	if !deleted {
		return ErrNotFound
	}
	log.Infof("deleted ledger entry %s", id)
	s.publish(ctx, event_bus.LedgerEntryDeleted, event_bus.LedgerEntryChanged{ID: id})
	return nil
}

func (s *ServiceImpl) findByID(ctx context.Context, id string) (Entry, error) {
	doc, err := s.store.FindOne(ctx, docstore.Filter{docstore.IDField: id})
	if err != nil {
		return Entry{}, mapStoreError(err)
	}
	return documentToEntry(doc), nil
}

// retry reruns op with exponential backoff while it fails transiently. A
// duplicate insert means another writer created the day first, so the rerun
// merges into that entry instead.
func (s *ServiceImpl) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.options.MaxRetries), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err != nil && !errors.Is(err, docstore.ErrUnavailable) && !errors.Is(err, docstore.ErrDuplicate) {
			return backoff.Permanent(err)
		}
		if err != nil {
			log.Warnf("transient store failure, retrying: %v", err)
		}
		return err
	}, policy)
}

func (s *ServiceImpl) publish(ctx context.Context, eventType event_bus.EventType, data event_bus.LedgerEntryChanged) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(event_bus.NewEvent(ctx, eventType, data)); err != nil {
		log.Warnf("failed to publish %s for %s: %v", eventType, data.DayKey, err)
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, docstore.ErrInvalidID):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	default:
		return err
	}
}
