package ledger

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/enaema/budget-ledger/internal/event_bus"
	"github.com/enaema/budget-ledger/internal/utils"
	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/enaema/budget-ledger/pkg/docstore/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march14 = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []event_bus.Event
}

func (p *recordingPublisher) Publish(e event_bus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []event_bus.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]event_bus.EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// flakyStore fails the first failures calls of the selected operation.
type flakyStore struct {
	docstore.Store
	mu       sync.Mutex
	failures int
	calls    int
	failOn   string
	failWith error
}

func (f *flakyStore) fail(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if op != f.failOn {
		return nil
	}
	f.calls++
	if f.calls <= f.failures {
		return f.failWith
	}
	return nil
}

func (f *flakyStore) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	if err := f.fail("FindOne"); err != nil {
		return nil, err
	}
	return f.Store.FindOne(ctx, filter)
}

func (f *flakyStore) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	if err := f.fail("InsertOne"); err != nil {
		return "", err
	}
	return f.Store.InsertOne(ctx, doc)
}

func (f *flakyStore) UpdateOne(ctx context.Context, filter docstore.Filter, set docstore.Document) (bool, error) {
	if err := f.fail("UpdateOne"); err != nil {
		return false, err
	}
	return f.Store.UpdateOne(ctx, filter, set)
}

type serviceFixture struct {
	service   *ServiceImpl
	store     docstore.Store
	clock     *utils.MockClock
	publisher *recordingPublisher
}

func setupService(t *testing.T, store docstore.Store, options Options) serviceFixture {
	t.Helper()
	if store == nil {
		store = memory.NewStore()
	}
	clock := &utils.MockClock{FixedNow: march14}
	publisher := &recordingPublisher{}
	service := NewService(store, NewDateKeyResolver(time.UTC), clock, publisher, options)
	service.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return serviceFixture{service: service, store: store, clock: clock, publisher: publisher}
}

func submit(t *testing.T, f serviceFixture, body string) Entry {
	t.Helper()
	submission, err := DecodeSubmission(strings.NewReader(body))
	require.NoError(t, err)
	entry, err := f.service.Upsert(context.Background(), submission)
	require.NoError(t, err)
	return entry
}

func TestServiceImpl_Upsert(t *testing.T) {
	t.Run("should create today's entry with every known category", func(t *testing.T) {
		// given
		f := setupService(t, nil, Options{})

		// when
		entry := submit(t, f, `{"limits": {"groceries": 500}, "groceries": {"expense": 30, "purpose": "milk", "item": "Milk"}}`)

		// then
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "14.03.2025", entry.DayKey)
		assert.Equal(t, "March", entry.MonthLabel)
		assert.Equal(t, "2025-03", entry.Period)
		assert.Len(t, entry.Categories, len(KnownCategories))
		assertAmount(t, "500", entry.Categories[Groceries].Limit)
		assertAmount(t, "30", entry.Categories[Groceries].Expense)
		assert.Equal(t, []string{"milk"}, entry.Categories[Groceries].Purposes())
		assertAmount(t, "0", entry.Categories[Healthcare].Limit)
		assert.Equal(t, []event_bus.EventType{event_bus.LedgerEntryUpserted}, f.publisher.types())
		created := f.publisher.events[0].Data.(event_bus.LedgerEntryChanged)
		assert.True(t, created.Created)
	})

	t.Run("should accumulate into the existing entry of the same day", func(t *testing.T) {
		// given
		f := setupService(t, nil, Options{})
		first := submit(t, f, `{"groceries": {"limit": 500, "expense": 30, "purpose": "milk"}}`)

		// when
		second := submit(t, f, `{"limits": {"groceries": 900}, "groceries": {"expense": "20", "purpose": "bread"}}`)

		// then
		assert.Equal(t, first.ID, second.ID)
		assertAmount(t, "50", second.Categories[Groceries].Expense)
		assertAmount(t, "500", second.Categories[Groceries].Limit, "limits only apply on creation by default")
		assert.Equal(t, []string{"milk", "bread"}, second.Categories[Groceries].Purposes())

		entries, err := f.service.List(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assertAmount(t, "50", entries[0].Categories[Groceries].Expense)
		assert.Equal(t, []string{"milk", "bread"}, entries[0].Categories[Groceries].Purposes())
	})

	t.Run("should seed limits from the latest prior day of the same month", func(t *testing.T) {
		// given
		f := setupService(t, nil, Options{})
		f.clock.SetNow(time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))
		submit(t, f, `{"limits": {"groceries": 400, "utility": 100}}`)
		f.clock.SetNow(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
		submit(t, f, `{"limits": {"groceries": 500}}`)
		f.clock.SetNow(march14)

		// when
		entry := submit(t, f, `{"groceries": {"expense": 50}}`)

		// then
		assertAmount(t, "500", entry.Categories[Groceries].Limit)
		assertAmount(t, "50", entry.Categories[Groceries].Expense)
		assertAmount(t, "100", entry.Categories[Utility].Limit, "10.03 inherited the utility limit from 02.03")
	})

	t.Run("should not inherit limits across months or years", func(t *testing.T) {
		// given
		f := setupService(t, nil, Options{})
		f.clock.SetNow(time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC))
		submit(t, f, `{"limits": {"groceries": 400}}`)
		f.clock.SetNow(time.Date(2025, 2, 28, 9, 0, 0, 0, time.UTC))
		submit(t, f, `{"limits": {"groceries": 300}}`)
		f.clock.SetNow(march14)

		// when
		entry := submit(t, f, `{"groceries": {"expense": 5}}`)

		// then
		assertAmount(t, "0", entry.Categories[Groceries].Limit)
	})

	t.Run("explicit limits win over inherited ones on creation", func(t *testing.T) {
		f := setupService(t, nil, Options{})
		f.clock.SetNow(time.Date(2025, 3, 13, 9, 0, 0, 0, time.UTC))
		submit(t, f, `{"limits": {"groceries": 400, "charity": 20}}`)
		f.clock.SetNow(march14)

		entry := submit(t, f, `{"limits": {"groceries": 600}, "charity": {"limit": 35}}`)

		assertAmount(t, "600", entry.Categories[Groceries].Limit)
		assertAmount(t, "35", entry.Categories[Charity].Limit)
	})

	t.Run("retroactive limits update the existing day when enabled", func(t *testing.T) {
		f := setupService(t, nil, Options{RetroactiveLimits: true})
		submit(t, f, `{"limits": {"groceries": 500, "utility": 100}}`)

		entry := submit(t, f, `{"limits": {"groceries": 900, "utility": 150}, "groceries": {"expense": 10}}`)

		assertAmount(t, "900", entry.Categories[Groceries].Limit)
		assertAmount(t, "150", entry.Categories[Utility].Limit)
		assertAmount(t, "10", entry.Categories[Groceries].Expense)
	})

	t.Run("non numeric expense does not fail the request", func(t *testing.T) {
		f := setupService(t, nil, Options{})
		submit(t, f, `{"groceries": {"expense": 30}}`)

		entry := submit(t, f, `{"groceries": {"expense": "abc", "purpose": "typo"}}`)

		assertAmount(t, "30", entry.Categories[Groceries].Expense)
		assert.Equal(t, []string{"typo"}, entry.Categories[Groceries].Purposes())
	})

	t.Run("unknown categories are stored but not aggregated", func(t *testing.T) {
		f := setupService(t, nil, Options{})

		entry := submit(t, f, `{"pets": {"limit": 80, "expense": 12}}`)

		require.Contains(t, entry.Categories, "pets")
		assertAmount(t, "12", entry.Categories["pets"].Expense)
		summaries, err := f.service.Aggregate(context.Background())
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assertAmount(t, "0", summaries[0].TotalExpense)
	})

	t.Run("empty submission still creates the day", func(t *testing.T) {
		f := setupService(t, nil, Options{})

		entry, err := f.service.Upsert(context.Background(), Submission{})

		require.NoError(t, err)
		assert.Len(t, entry.Categories, len(KnownCategories))
		entry, err = f.service.Upsert(context.Background(), Submission{})
		require.NoError(t, err)
		assert.Equal(t, "March", entry.MonthLabel)
	})

	t.Run("concurrent submissions for one day produce a single entry", func(t *testing.T) {
		f := setupService(t, nil, Options{})
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.service.Upsert(context.Background(), Submission{
					Categories: map[string]CategoryInput{Groceries: {Expense: decPtr("1")}},
					Order:      []string{Groceries},
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		entries, err := f.service.List(context.Background())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assertAmount(t, "20", entries[0].Categories[Groceries].Expense)
	})
}

func TestServiceImpl_Upsert_Retries(t *testing.T) {
	t.Run("should retry transient failures", func(t *testing.T) {
		// given
		store := &flakyStore{Store: memory.NewStore(), failOn: "InsertOne", failures: 2, failWith: docstore.ErrUnavailable}
		f := setupService(t, store, Options{})

		// when
		entry := submit(t, f, `{"groceries": {"expense": 30}}`)

		// then
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, 3, store.calls)
		entries, err := f.service.List(context.Background())
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("should retry after a duplicate insert", func(t *testing.T) {
		store := &flakyStore{Store: memory.NewStore(), failOn: "InsertOne", failures: 1, failWith: docstore.ErrDuplicate}
		f := setupService(t, store, Options{})

		entry := submit(t, f, `{"groceries": {"expense": 30}}`)

		assertAmount(t, "30", entry.Categories[Groceries].Expense)
	})

	t.Run("should give up after the retry budget", func(t *testing.T) {
		store := &flakyStore{Store: memory.NewStore(), failOn: "FindOne", failures: 10, failWith: docstore.ErrUnavailable}
		f := setupService(t, store, Options{MaxRetries: 2})

		_, err := f.service.Upsert(context.Background(), Submission{})

		assert.ErrorIs(t, err, docstore.ErrUnavailable)
		assert.Equal(t, 3, store.calls)
		assert.Empty(t, f.publisher.types())
	})

	t.Run("should not retry permanent failures", func(t *testing.T) {
		boom := errors.New("disk full")
		store := &flakyStore{Store: memory.NewStore(), failOn: "UpdateOne", failures: 10, failWith: boom}
		f := setupService(t, store, Options{})
		submit(t, f, `{"groceries": {"expense": 1}}`)

		_, err := f.service.Upsert(context.Background(), Submission{})

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, store.calls)
	})
}

func TestServiceImpl_SetExpenses(t *testing.T) {
	t.Run("should overwrite expenses", func(t *testing.T) {
		// given
		f := setupService(t, nil, Options{})
		entry := submit(t, f, `{"groceries": {"expense": 30, "purpose": "milk"}}`)

		// when
		updated, err := f.service.SetExpenses(context.Background(), entry.ID, map[string]decimal.Decimal{
			Groceries: dec("12"),
			"pets":    dec("4"),
		})

		// then
		require.NoError(t, err)
		assertAmount(t, "12", updated.Categories[Groceries].Expense)
		assert.Equal(t, []string{"milk"}, updated.Categories[Groceries].Purposes())
		assertAmount(t, "4", updated.Categories["pets"].Expense)
		assertAmount(t, "0", updated.Categories["pets"].Limit)

		entries, err := f.service.List(context.Background())
		require.NoError(t, err)
		assertAmount(t, "12", entries[0].Categories[Groceries].Expense)
		assert.Equal(t, event_bus.LedgerEntryUpdated, f.publisher.types()[1])
	})

	t.Run("unchanged values are a no-op", func(t *testing.T) {
		f := setupService(t, nil, Options{})
		entry := submit(t, f, `{"groceries": {"expense": 30}}`)

		_, err := f.service.SetExpenses(context.Background(), entry.ID, map[string]decimal.Decimal{Groceries: dec("30")})

		assert.ErrorIs(t, err, ErrNoOpUpdate)
	})

	t.Run("empty update is a no-op", func(t *testing.T) {
		f := setupService(t, nil, Options{})

		_, err := f.service.SetExpenses(context.Background(), uuid.NewString(), nil)

		assert.ErrorIs(t, err, ErrNoOpUpdate)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		f := setupService(t, nil, Options{})

		_, err := f.service.SetExpenses(context.Background(), uuid.NewString(), map[string]decimal.Decimal{Groceries: dec("1")})

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed id is a validation failure", func(t *testing.T) {
		f := setupService(t, nil, Options{})

		_, err := f.service.SetExpenses(context.Background(), "not-an-id", map[string]decimal.Decimal{Groceries: dec("1")})

		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestServiceImpl_Delete(t *testing.T) {
	t.Run("should delete an entry", func(t *testing.T) {
		f := setupService(t, nil, Options{})
		entry := submit(t, f, `{"groceries": {"expense": 30}}`)

		err := f.service.Delete(context.Background(), entry.ID)

		require.NoError(t, err)
		entries, err := f.service.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Equal(t, event_bus.LedgerEntryDeleted, f.publisher.types()[1])
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		f := setupService(t, nil, Options{})

		assert.ErrorIs(t, f.service.Delete(context.Background(), uuid.NewString()), ErrNotFound)
	})

	t.Run("malformed id is a validation failure", func(t *testing.T) {
		f := setupService(t, nil, Options{})

		assert.ErrorIs(t, f.service.Delete(context.Background(), "42"), ErrValidation)
	})
}

func TestServiceImpl_Aggregate(t *testing.T) {
	f := setupService(t, nil, Options{})
	f.clock.SetNow(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	submit(t, f, `{"limits": {"groceries": 500, "transportation": 100}, "groceries": {"expense": 30}}`)
	f.clock.SetNow(time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC))
	submit(t, f, `{"groceries": {"expense": 20}, "transportation": {"expense": 15}}`)
	f.clock.SetNow(time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	submit(t, f, `{"limits": {"utility": 200}, "utility": {"expense": 80}}`)

	summaries, err := f.service.Aggregate(context.Background())

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "March", summaries[0].Month)
	assertAmount(t, "1200", summaries[0].TotalLimit)
	assertAmount(t, "65", summaries[0].TotalExpense)
	assertAmount(t, "50", summaries[0].CategoryExpenses[Groceries])
	assertAmount(t, "15", summaries[0].CategoryExpenses[Transportation])
	assert.Equal(t, "April", summaries[1].Month)
	assertAmount(t, "200", summaries[1].TotalLimit)
	assertAmount(t, "80", summaries[1].TotalExpense)
}
