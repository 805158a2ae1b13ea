// Package format renders amounts and rates for human-readable output.
package format

import (
	"math"

	"github.com/iwvelando/land-cashflow/pkg/constants"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	formatted := NumericCurrency(math.Abs(amount))
	if amount < 0 && formatted != "0.00" {
		return "-$" + formatted
	}
	return "$" + formatted
}

// NumericCurrency returns a currency string without a currency symbol but with separators (e.g., "-1,234.56").
func NumericCurrency(amount float64) string {
	if amount == 0 || math.Abs(amount) < constants.CurrencyTolerance/2 {
		amount = 0
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2f", amount)
}

// Percent formats a decimal rate as a percentage (0.1234 => "12.34%").
// A nil rate renders as "n/a".
func Percent(rate *float64) string {
	if rate == nil {
		return "n/a"
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2f%%", *rate*constants.PercentageMultiplier)
}

// Multiple formats an equity multiple (1.5 => "1.50x").
func Multiple(m float64) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2fx", m)
}
