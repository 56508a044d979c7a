package aggregate

import (
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// amount reads a monetary value. Missing, null and non-numeric values are 0.
func amount(v any) decimal.Decimal {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(t)
	case int:
		return decimal.NewFromInt(int64(t))
	case int64:
		return decimal.NewFromInt(t)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		if err != nil {
			return decimal.Zero
		}
		return d
	case interface{ String() string }:
		return amount(t.String())
	}
	return decimal.Zero
}

// Format renders d with two decimals and thousands separators, e.g. 1,234.50.
func Format(d decimal.Decimal) string {
	return humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

// FormatUSD is Format with a leading dollar sign.
func FormatUSD(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + Format(d.Neg())
	}
	return "$" + Format(d)
}
