package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const limitsField = "limits"

// DecodeSubmission parses a POST body. Only a non-object body or a non-object
// "limits" value is rejected; every other shape is coerced.
func DecodeSubmission(r io.Reader) (Submission, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: could not read body: %v", ErrValidation, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Submission{Categories: map[string]CategoryInput{}}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Submission{}, fmt.Errorf("%w: body must be a JSON object", ErrValidation)
	}

	submission := Submission{Categories: map[string]CategoryInput{}}
	if rawLimits, ok := fields[limitsField]; ok && !isJSONNull(rawLimits) {
		var limits map[string]any
		if err := unmarshalNumbers(rawLimits, &limits); err != nil {
			return Submission{}, fmt.Errorf("%w: limits must be an object", ErrValidation)
		}
		submission.Limits = make(map[string]decimal.Decimal, len(limits))
		for name, value := range limits {
			submission.Limits[name] = coerceLimit(value)
		}
	}

	for _, name := range orderedKeys(raw) {
		if name == limitsField || isReservedField(name) {
			continue
		}
		if _, seen := submission.Categories[name]; seen {
			continue
		}
		var body map[string]any
		if err := unmarshalNumbers(fields[name], &body); err != nil || body == nil {
			log.Warnf("ignoring category %q: body is not an object", name)
			continue
		}
		if !IsKnownCategory(name) {
			log.Warnf("accepting unknown category %q", name)
		}
		submission.Categories[name] = decodeCategoryInput(body)
		submission.Order = append(submission.Order, name)
	}
	return submission, nil
}

func decodeCategoryInput(body map[string]any) CategoryInput {
	var input CategoryInput
	if v, ok := body[fieldLimit]; ok {
		input.Limit = decimalPtr(coerceLimit(v))
	}
	if v, ok := body[fieldExpense]; ok {
		input.Expense = decimalPtr(coerceAmount(v))
	}
	if v, ok := body[fieldPurpose]; ok && v != nil && stringField(v) != "" {
		purpose := stringField(v)
		input.Purpose = &purpose
	}
	if v, ok := body[fieldItem]; ok && v != nil && stringField(v) != "" {
		item := stringField(v)
		input.Item = &item
	}
	return input
}

// DecodeExpenseData parses a PUT body of the form {"expenseData": {"<category>": number}}.
func DecodeExpenseData(r io.Reader) (map[string]decimal.Decimal, error) {
	var body struct {
		ExpenseData map[string]any `json:"expenseData"`
	}
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	if err := decoder.Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: expenseData must be an object", ErrValidation)
	}
	expenses := make(map[string]decimal.Decimal, len(body.ExpenseData))
	for name, value := range body.ExpenseData {
		amount, ok := parseAmount(value)
		if !ok {
			return nil, fmt.Errorf("%w: expense for %q is not a number", ErrValidation, name)
		}
		expenses[name] = amount
	}
	return expenses, nil
}

func unmarshalNumbers(raw json.RawMessage, v any) error {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	return decoder.Decode(v)
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// orderedKeys returns the top-level keys of a JSON object in document order.
func orderedKeys(raw []byte) []string {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	if tok, err := decoder.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	keys := make([]string, 0, 8)
	for decoder.More() {
		tok, err := decoder.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := decoder.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}
