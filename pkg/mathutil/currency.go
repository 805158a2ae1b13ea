// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/shopspring/decimal"
)

// Round rounds a value to two decimals, i.e. to represent real currency.
// Halves round away from zero on the decimal representation, so 1.235
// becomes 1.24 even though its binary form is slightly below the midpoint.
func Round(val float64) float64 {
	return RoundTo(val, constants.DecimalPlaces)
}

// RoundTo rounds a value to the given number of decimal places.
func RoundTo(val float64, places int32) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return val
	}
	return decimal.NewFromFloat(val).Round(places).InexactFloat64()
}

// Remainder returns total minus the sum of parts, computed in decimal so the
// final period of a distribution absorbs float drift exactly.
func Remainder(total float64, parts []float64) float64 {
	acc := decimal.NewFromFloat(total)
	for _, p := range parts {
		acc = acc.Sub(decimal.NewFromFloat(p))
	}
	return acc.InexactFloat64()
}

// IsZero checks if a value is effectively zero (within tolerance)
func IsZero(val float64) bool {
	return math.Abs(val) <= constants.CurrencyTolerance
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// SafeDivide returns numerator/denominator, or zero when the denominator is zero.
func SafeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	return SafeDivide(value, total) * constants.PercentageMultiplier
}

// CompoundFactor compounds an annual rate over the given number of months:
// (1+rate)^(months/12). A zero rate, a non-positive month count or a rate
// at or below -100% yields 1.
func CompoundFactor(annualRate float64, months int) float64 {
	if annualRate == 0 || months <= 0 || annualRate <= -1 {
		return 1
	}
	return math.Pow(1+annualRate, float64(months)/constants.MonthsPerYear)
}
