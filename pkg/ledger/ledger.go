package ledger

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	Groceries      = "groceries"
	Transportation = "transportation"
	Healthcare     = "healthcare"
	Utility        = "utility"
	Charity        = "charity"
	Miscellaneous  = "miscellaneous"
)

// KnownCategories is the fixed set of budget buckets seeded on every new day and rolled up per month.
var KnownCategories = []string{Groceries, Transportation, Healthcare, Utility, Charity, Miscellaneous}

var (
	ErrValidation = errors.New("invalid request")
	ErrNotFound   = errors.New("ledger entry not found")
	ErrNoOpUpdate = errors.New("no fields were updated")
)

func IsKnownCategory(name string) bool {
	for _, c := range KnownCategories {
		if c == name {
			return true
		}
	}
	return false
}

type NoteKind string

const (
	NotePurpose NoteKind = "purpose"
	// NoteExpense is an itemized amount written by older revisions as expense1, expense2, ...
	// It is only ever read back, never produced by a merge.
	NoteExpense NoteKind = "expense"
)

type Note struct {
	Kind   NoteKind
	Text   string
	Amount decimal.Decimal
}

type CategoryRecord struct {
	Limit decimal.Decimal
	// Expense is the running total for the day.
	Expense decimal.Decimal
	// Notes keeps purposes (and legacy itemized expenses) in submission order.
	Notes []Note
	Item  string
}

// Purposes returns the purpose annotations in the order they were submitted.
func (c CategoryRecord) Purposes() []string {
	purposes := make([]string, 0, len(c.Notes))
	for _, n := range c.Notes {
		if n.Kind == NotePurpose {
			purposes = append(purposes, n.Text)
		}
	}
	return purposes
}

// TotalExpense is the running total plus any legacy itemized expenses.
func (c CategoryRecord) TotalExpense() decimal.Decimal {
	total := c.Expense
	for _, n := range c.Notes {
		if n.Kind == NoteExpense {
			total = total.Add(n.Amount)
		}
	}
	return total
}

func (c CategoryRecord) clone() CategoryRecord {
	c.Notes = append([]Note(nil), c.Notes...)
	return c
}

// Entry is the ledger record for one calendar day.
type Entry struct {
	ID         string
	DayKey     string
	MonthLabel string
	// Period is YYYY-MM; it scopes limit inheritance to one month of one year.
	Period     string
	Categories map[string]CategoryRecord
}

// CategoryInput is one category body of a submission. Nil fields were not supplied.
type CategoryInput struct {
	Limit   *decimal.Decimal
	Expense *decimal.Decimal
	Purpose *string
	Item    *string
}

// Submission is a decoded POST body: optional limits plus category bodies keyed by name.
type Submission struct {
	Limits     map[string]decimal.Decimal
	Categories map[string]CategoryInput
	// Order lists category names in the order they appeared in the request.
	Order []string
}

// MonthSummary is the roll-up of every entry that shares a month label.
type MonthSummary struct {
	Month            string
	TotalLimit       decimal.Decimal
	TotalExpense     decimal.Decimal
	CategoryExpenses map[string]decimal.Decimal
}
