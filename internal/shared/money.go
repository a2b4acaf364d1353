package shared

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var inrPrinter = message.NewPrinter(language.MustParse("en-IN"))

// Round2 rounds an amount to paise. Use only at presentation boundaries.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatINR renders an amount with Indian digit grouping, e.g. ₹1,23,456.50.
func FormatINR(d decimal.Decimal) string {
	f, _ := d.Round(2).Float64()
	return inrPrinter.Sprintf("₹%.2f", f)
}

// SumDecimals adds the given values.
func SumDecimals(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
