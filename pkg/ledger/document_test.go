package ledger

import (
	"testing"

	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryToDocument(t *testing.T) {
	entry := Entry{
		ID:         "ignored",
		DayKey:     "14.03.2025",
		MonthLabel: "March",
		Period:     "2025-03",
		Categories: map[string]CategoryRecord{
			Groceries: {
				Limit:   dec("500"),
				Expense: dec("50.25"),
				Notes: []Note{
					{Kind: NotePurpose, Text: "milk"},
					{Kind: NotePurpose, Text: "bread"},
				},
				Item: "Bread",
			},
			Charity: {Limit: dec("0"), Expense: dec("0")},
		},
	}

	doc := entryToDocument(entry)

	assert.Equal(t, docstore.Document{
		"date":   "14.03.2025",
		"month":  "March",
		"period": "2025-03",
		"groceries": map[string]any{
			"limit":    500.0,
			"expense":  50.25,
			"purpose1": "milk",
			"purpose2": "bread",
			"item":     "Bread",
		},
		"charity": map[string]any{
			"limit":   0.0,
			"expense": 0.0,
		},
	}, doc)
}

func TestDocumentToEntry(t *testing.T) {
	doc := docstore.Document{
		"_id":    "abc",
		"date":   "02.01.2025",
		"month":  "January",
		"period": "2025-01",
		"groceries": map[string]any{
			"limit":    "500",
			"expense":  20.0,
			"purpose2": "second",
			"purpose1": "first",
			"purpose":  "original",
			"expense2": 3.0,
			"expense1": "2",
			"item":     "Apples",
		},
		"__v": 0.0,
	}

	entry := documentToEntry(doc)

	assert.Equal(t, "abc", entry.ID)
	assert.Equal(t, "02.01.2025", entry.DayKey)
	assert.Equal(t, "January", entry.MonthLabel)
	assert.Equal(t, "2025-01", entry.Period)
	require.Len(t, entry.Categories, 1, "non-object fields are not categories")

	groceries := entry.Categories[Groceries]
	assertAmount(t, "500", groceries.Limit)
	assertAmount(t, "20", groceries.Expense)
	assertAmount(t, "25", groceries.TotalExpense())
	assert.Equal(t, []string{"original", "first", "second"}, groceries.Purposes())
	assert.Equal(t, "Apples", groceries.Item)
}

func TestDocumentRoundTripKeepsNoteOrder(t *testing.T) {
	record := CategoryRecord{
		Limit:   dec("10"),
		Expense: dec("1"),
		Notes: []Note{
			{Kind: NotePurpose, Text: "a"},
			{Kind: NotePurpose, Text: "b"},
			{Kind: NotePurpose, Text: "c"},
		},
	}

	decoded := documentToCategory(categoryToDocument(record))

	assert.Equal(t, []string{"a", "b", "c"}, decoded.Purposes())
}

func TestNumberedKey(t *testing.T) {
	tests := []struct {
		key    string
		want   int
		wantOk bool
	}{
		{"purpose", 0, true},
		{"purpose1", 1, true},
		{"purpose12", 12, true},
		{"purpose0", 0, false},
		{"purposeX", 0, false},
		{"item", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			n, ok := numberedKey(tt.key, fieldPurpose)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, n)
		})
	}
}
