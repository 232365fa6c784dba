package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// AmountFormatter renders amounts with the thousands separators of a locale.
type AmountFormatter struct {
	printer *message.Printer
}

func NewAmountFormatter(locale string) (AmountFormatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return AmountFormatter{}, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	return AmountFormatter{printer: message.NewPrinter(tag)}, nil
}

func (f AmountFormatter) Format(amount decimal.Decimal) string {
	if f.printer == nil {
		f.printer = message.NewPrinter(language.AmericanEnglish)
	}
	if amount.IsInteger() {
		return f.printer.Sprint(number.Decimal(amount.IntPart()))
	}
	return f.printer.Sprint(number.Decimal(amount.InexactFloat64(), number.MaxFractionDigits(3)))
}
