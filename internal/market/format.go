package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var suffixes = []struct {
	threshold decimal.Decimal
	suffix    string
}{
	{decimal.New(1, 15), "Q"},
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// FormatAmount renders a decimal-string amount with suffix scaling.
// Presentation only: callers keep the raw amount string untouched.
func FormatAmount(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return amount
	}
	abs := d.Abs()
	for _, s := range suffixes {
		if abs.GreaterThanOrEqual(s.threshold) {
			return d.Div(s.threshold).StringFixed(1) + s.suffix
		}
	}
	return d.StringFixed(2)
}

// FormatPriceUSD renders a USD price with precision appropriate to its
// magnitude, matching how the dashboard displays sub-cent coins.
func FormatPriceUSD(price float64) string {
	switch {
	case price == 0:
		return "$0"
	case price < 0.01:
		return fmt.Sprintf("$%.6f", price)
	default:
		return fmt.Sprintf("$%.2f", price)
	}
}
