package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const (
	fieldDate   = "date"
	fieldMonth  = "month"
	fieldPeriod = "period"

	fieldLimit   = "limit"
	fieldExpense = "expense"
	fieldPurpose = "purpose"
	fieldItem    = "item"
)

func isReservedField(name string) bool {
	switch name {
	case docstore.IDField, fieldDate, fieldMonth, fieldPeriod:
		return true
	}
	return false
}

// entryToDocument produces the flat document shape stored in the collection:
// {date, month, period, <category>: {limit, expense, purpose1.., item}}.
func entryToDocument(entry Entry) docstore.Document {
	doc := docstore.Document{
		fieldDate:   entry.DayKey,
		fieldMonth:  entry.MonthLabel,
		fieldPeriod: entry.Period,
	}
	for name, record := range entry.Categories {
		doc[name] = categoryToDocument(record)
	}
	return doc
}

func categoriesToDocument(categories map[string]CategoryRecord) docstore.Document {
	doc := docstore.Document{}
	for name, record := range categories {
		doc[name] = categoryToDocument(record)
	}
	return doc
}

func categoryToDocument(record CategoryRecord) map[string]any {
	doc := map[string]any{
		fieldLimit:   record.Limit.InexactFloat64(),
		fieldExpense: record.Expense.InexactFloat64(),
	}
	purposes, expenses := 0, 0
	for _, n := range record.Notes {
		switch n.Kind {
		case NotePurpose:
			purposes++
			doc[fieldPurpose+strconv.Itoa(purposes)] = n.Text
		case NoteExpense:
			expenses++
			doc[fieldExpense+strconv.Itoa(expenses)] = n.Amount.InexactFloat64()
		}
	}
	if record.Item != "" {
		doc[fieldItem] = record.Item
	}
	return doc
}

func documentToEntry(doc docstore.Document) Entry {
	entry := Entry{
		ID:         doc.ID(),
		DayKey:     stringField(doc[fieldDate]),
		MonthLabel: stringField(doc[fieldMonth]),
		Period:     stringField(doc[fieldPeriod]),
		Categories: map[string]CategoryRecord{},
	}
	for name, value := range doc {
		if isReservedField(name) {
			continue
		}
		body, ok := value.(map[string]any)
		if !ok {
			log.Debugf("ignoring non-category field %q on entry %s", name, entry.DayKey)
			continue
		}
		entry.Categories[name] = documentToCategory(body)
	}
	return entry
}

type numberedNote struct {
	n    int
	note Note
}

func documentToCategory(body map[string]any) CategoryRecord {
	record := CategoryRecord{
		Limit:   coerceLimit(body[fieldLimit]),
		Expense: coerceAmount(body[fieldExpense]),
		Item:    stringField(body[fieldItem]),
	}

	purposes := make([]numberedNote, 0, 4)
	expenses := make([]numberedNote, 0)
	for key, value := range body {
		if n, ok := numberedKey(key, fieldPurpose); ok {
			purposes = append(purposes, numberedNote{n, Note{Kind: NotePurpose, Text: stringField(value)}})
		} else if n, ok := numberedKey(key, fieldExpense); ok && n > 0 {
			expenses = append(expenses, numberedNote{n, Note{Kind: NoteExpense, Amount: coerceAmount(value)}})
		}
	}
	byNumber := func(notes []numberedNote) {
		sort.Slice(notes, func(i, j int) bool { return notes[i].n < notes[j].n })
	}
	byNumber(purposes)
	byNumber(expenses)
	for _, p := range purposes {
		record.Notes = append(record.Notes, p.note)
	}
	for _, e := range expenses {
		record.Notes = append(record.Notes, e.note)
	}
	return record
}

// numberedKey matches prefix followed by an optional positive number; a bare prefix is number 0.
func numberedKey(key, prefix string) (int, bool) {
	if !strings.HasPrefix(key, prefix) {
		return 0, false
	}
	suffix := key[len(prefix):]
	if suffix == "" {
		return 0, true
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
