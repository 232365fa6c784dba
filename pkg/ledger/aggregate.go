package ledger

import (
	"iter"

	"github.com/shopspring/decimal"
)

// Aggregate rolls entries up into one summary per month label, in the order
// months are first seen. The returned sequence recomputes from the snapshot on
// every iteration and never touches the entries.
func Aggregate(entries []Entry) iter.Seq[MonthSummary] {
	return func(yield func(MonthSummary) bool) {
		for _, summary := range aggregate(entries) {
			if !yield(summary) {
				return
			}
		}
	}
}

func aggregate(entries []Entry) []MonthSummary {
	summaries := make([]MonthSummary, 0, 12)
	indexByMonth := make(map[string]int, 12)

	for _, entry := range entries {
		idx, seen := indexByMonth[entry.MonthLabel]
		if !seen {
			idx = len(summaries)
			indexByMonth[entry.MonthLabel] = idx
			summaries = append(summaries, newMonthSummary(entry.MonthLabel))
		}
		summary := &summaries[idx]

		for _, name := range KnownCategories {
			record, ok := entry.Categories[name]
			if !ok {
				continue
			}
			expense := record.TotalExpense()
			summary.TotalLimit = summary.TotalLimit.Add(record.Limit)
			summary.TotalExpense = summary.TotalExpense.Add(expense)
			summary.CategoryExpenses[name] = summary.CategoryExpenses[name].Add(expense)
		}
	}
	return summaries
}

func newMonthSummary(month string) MonthSummary {
	expenses := make(map[string]decimal.Decimal, len(KnownCategories))
	for _, name := range KnownCategories {
		expenses[name] = decimal.Zero
	}
	return MonthSummary{
		Month:            month,
		TotalLimit:       decimal.Zero,
		TotalExpense:     decimal.Zero,
		CategoryExpenses: expenses,
	}
}
