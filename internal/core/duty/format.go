package duty

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// roundMoney rounds half away from zero, which is half-up for the non-negative amounts handled here.
func roundMoney(d decimal.Decimal, minorUnits int32) decimal.Decimal {
	return d.Round(minorUnits)
}

func FormatMoney(d decimal.Decimal, minorUnits int32) string {
	return d.StringFixed(minorUnits)
}

// FormatPercent renders 5 as "5.0%" and 7.25 as "7.25%".
func FormatPercent(rate decimal.Decimal) string {
	if rate.Equal(rate.Round(1)) {
		return rate.StringFixed(1) + "%"
	}
	return rate.String() + "%"
}

func formatUnitRate(rate decimal.Decimal) string {
	if rate.Equal(rate.Round(2)) {
		return rate.StringFixed(2)
	}
	return rate.String()
}

func unitLabel(unit string) string {
	unit = strings.TrimSpace(unit)
	if unit == "" {
		return "unit"
	}
	return unit
}
