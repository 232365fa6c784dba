package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsvSummaryRendererImpl_RenderSummaries(t *testing.T) {
	march := newMonthSummary("March")
	march.TotalLimit = dec("1100")
	march.TotalExpense = dec("75.5")
	march.CategoryExpenses[Groceries] = dec("70.5")
	march.CategoryExpenses[Charity] = dec("5")

	april := newMonthSummary("April")
	april.TotalLimit = dec("400")
	april.TotalExpense = dec("10")
	april.CategoryExpenses[Utility] = dec("10")

	csv, err := NewCsvSummaryRenderer().RenderSummaries([]MonthSummary{march, april})

	require.NoError(t, err)
	expected := "Month,Limit,groceries,transportation,healthcare,utility,charity,miscellaneous,SUM\n" +
		"March,1100.00,70.50,0.00,0.00,0.00,5.00,0.00,75.50\n" +
		"April,400.00,0.00,0.00,0.00,10.00,0.00,0.00,10.00\n" +
		"Total,1500.00,70.50,0.00,0.00,10.00,5.00,0.00,85.50\n"
	assert.Equal(t, expected, csv)
}

func TestCsvSummaryRendererImpl_RenderEmpty(t *testing.T) {
	csv, err := NewCsvSummaryRenderer().RenderSummaries(nil)

	require.NoError(t, err)
	assert.Equal(t, "Month,Limit,groceries,transportation,healthcare,utility,charity,miscellaneous,SUM\n"+
		"Total,0.00,0.00,0.00,0.00,0.00,0.00,0.00,0.00\n", csv)
}

func TestAmountToString(t *testing.T) {
	assert.Equal(t, "12.35", amountToString(decimal.RequireFromString("12.345")))
}
