package ledger

import (
	"bytes"
	"encoding/csv"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type SummaryRenderer interface {
	RenderSummaries(summaries []MonthSummary) (string, error)
}

type CsvSummaryRendererImpl struct {
}

func NewCsvSummaryRenderer() *CsvSummaryRendererImpl {
	return &CsvSummaryRendererImpl{}
}

// RenderSummaries writes one row per month followed by a Total row.
// Columns: month, total limit, one expense column per known category, total expense.
func (r *CsvSummaryRendererImpl) RenderSummaries(summaries []MonthSummary) (string, error) {
	header := make([]string, 0, len(KnownCategories)+3)
	header = append(header, "Month", "Limit")
	header = append(header, KnownCategories...)
	header = append(header, "SUM")

	totals := newMonthSummary("Total")
	data := make([][]string, 0, len(summaries)+2)
	data = append(data, header)
	for _, summary := range summaries {
		data = append(data, summaryRow(summary))

		totals.TotalLimit = totals.TotalLimit.Add(summary.TotalLimit)
		totals.TotalExpense = totals.TotalExpense.Add(summary.TotalExpense)
		for _, name := range KnownCategories {
			totals.CategoryExpenses[name] = totals.CategoryExpenses[name].Add(summary.CategoryExpenses[name])
		}
	}
	data = append(data, summaryRow(totals))

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range data {
		err := writer.Write(row)
		if err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}

	return b.String(), nil
}

func summaryRow(summary MonthSummary) []string {
	row := make([]string, 0, len(KnownCategories)+3)
	row = append(row, summary.Month, amountToString(summary.TotalLimit))
	for _, name := range KnownCategories {
		row = append(row, amountToString(summary.CategoryExpenses[name]))
	}
	return append(row, amountToString(summary.TotalExpense))
}

func amountToString(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
