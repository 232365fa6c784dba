package ledger

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount interprets numbers and numeric strings. ok is false for anything else.
func parseAmount(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case float32:
		return parseAmount(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		return parseAmount(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

// coerceAmount never fails: absent or non-numeric input counts as zero.
func coerceAmount(v any) decimal.Decimal {
	d, _ := parseAmount(v)
	return d
}

func coerceLimit(v any) decimal.Decimal {
	return nonNegative(coerceAmount(v))
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
