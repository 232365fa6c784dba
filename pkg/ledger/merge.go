package ledger

import (
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Merge folds one category submission into the category's current state.
// An explicit limitOverride always wins; otherwise an existing limit is kept
// and a new record takes the submitted limit or zero.
func Merge(existing *CategoryRecord, incoming *CategoryInput, limitOverride *decimal.Decimal) CategoryRecord {
	if existing == nil {
		return seed(incoming, limitOverride)
	}

	merged := existing.clone()
	if limitOverride != nil {
		merged.Limit = nonNegative(*limitOverride)
	}
	if incoming == nil {
		return merged
	}

	if incoming.Expense != nil {
		merged.Expense = merged.Expense.Add(*incoming.Expense)
	}
	if incoming.Purpose != nil {
		merged.Notes = append(merged.Notes, Note{Kind: NotePurpose, Text: *incoming.Purpose})
	}
	if incoming.Item != nil {
		merged.Item = *incoming.Item
	}
	log.Debugf("merged category: expense %s, %d notes", merged.Expense, len(merged.Notes))
	return merged
}

func seed(incoming *CategoryInput, limitOverride *decimal.Decimal) CategoryRecord {
	record := CategoryRecord{Limit: decimal.Zero, Expense: decimal.Zero}
	switch {
	case limitOverride != nil:
		record.Limit = nonNegative(*limitOverride)
	case incoming != nil && incoming.Limit != nil:
		record.Limit = nonNegative(*incoming.Limit)
	}
	if incoming == nil {
		return record
	}
	if incoming.Expense != nil {
		record.Expense = *incoming.Expense
	}
	if incoming.Purpose != nil {
		record.Notes = []Note{{Kind: NotePurpose, Text: *incoming.Purpose}}
	}
	if incoming.Item != nil {
		record.Item = *incoming.Item
	}
	return record
}
