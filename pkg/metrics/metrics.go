// Package metrics computes investment metrics over a periodic net cash-flow
// series: IRR, NPV and equity analysis.
package metrics

import (
	"math"

	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/periods"
	"gonum.org/v1/gonum/floats"
)

// IRRResult is the outcome of an IRR solve. Rate is periodic and only
// meaningful when Converged is true.
type IRRResult struct {
	Rate       float64
	Converged  bool
	Iterations int
	Seed       float64
}

// EquityResult summarizes the capital profile of a flow series.
type EquityResult struct {
	TotalInvestment float64
	TotalProceeds   float64
	Multiple        float64
	// PeakEquity is the most negative point of the cumulative series, or 0.
	PeakEquity float64
	// PaybackPeriod is the index at which the cumulative series returns to
	// zero or above after going negative. It is 0 when the series never goes
	// negative and -1 when it never recovers. Leading zero periods before the
	// first outflow do not count as payback: [0, -100, 200] pays back at 2,
	// not at the first index whose cumulative value is >= 0.
	PaybackPeriod int
	Cumulative    []float64
}

// Result bundles every metric for one flow series.
type Result struct {
	IRR           *float64
	AnnualIRR     *float64
	IRRIterations int
	DiscountRate  float64
	NPV           float64
	Equity        EquityResult
}

// Calculate runs every metric over flows whose periods are of type t.
func Calculate(flows []float64, t periods.Type, discountRate float64) Result {
	result := Result{
		DiscountRate: discountRate,
		NPV:          NPV(flows, discountRate, t),
		Equity:       Equity(flows),
	}

	irr := IRR(flows)
	result.IRRIterations = irr.Iterations
	if irr.Converged {
		rate := irr.Rate
		annual := Annualize(rate, t)
		result.IRR = &rate
		result.AnnualIRR = &annual
	}
	return result
}

// IRR solves for the periodic rate at which the NPV of flows is zero using
// Newton-Raphson. The first attempt starts from the total-return guess; the
// fallback seeds are tried in order when it fails. Flows without a sign
// change have no finite root and are reported as not converged.
func IRR(flows []float64) IRRResult {
	if len(flows) < 2 || !hasSignChange(flows) {
		return IRRResult{}
	}

	seeds := append([]float64{initialGuess(flows)}, constants.IRRFallbackSeeds...)
	var iterations int
	for _, seed := range seeds {
		rate, n, ok := newton(flows, seed)
		iterations += n
		if ok {
			return IRRResult{Rate: rate, Converged: true, Iterations: iterations, Seed: seed}
		}
	}
	return IRRResult{Iterations: iterations}
}

func newton(flows []float64, seed float64) (float64, int, bool) {
	rate := seed
	for i := 1; i <= constants.IRRMaxIterations; i++ {
		npv, slope := npvAndSlope(flows, rate)
		if math.Abs(slope) < constants.IRRMinDerivative {
			return 0, i, false
		}
		next := rate - npv/slope
		if math.IsNaN(next) || next < constants.IRRMinRate || next > constants.IRRMaxRate {
			return 0, i, false
		}
		// Judged on the rate step; NPV magnitude scales with the flows.
		if math.Abs(next-rate) < constants.IRRTolerance {
			return next, i, true
		}
		rate = next
	}
	return 0, constants.IRRMaxIterations, false
}

func npvAndSlope(flows []float64, rate float64) (float64, float64) {
	var npv, slope float64
	base := 1 + rate
	for t, cf := range flows {
		discount := math.Pow(base, float64(t))
		npv += cf / discount
		slope -= float64(t) * cf / (discount * base)
	}
	return npv, slope
}

func initialGuess(flows []float64) float64 {
	var positive, negative float64
	for _, cf := range flows {
		if cf > 0 {
			positive += cf
		} else {
			negative -= cf
		}
	}
	if negative == 0 {
		return 0
	}
	guess := math.Pow(positive/negative, 1/float64(len(flows)-1)) - 1
	return math.Max(constants.IRRGuessFloor, math.Min(constants.IRRGuessCeiling, guess))
}

func hasSignChange(flows []float64) bool {
	var positive, negative bool
	for _, cf := range flows {
		positive = positive || cf > 0
		negative = negative || cf < 0
	}
	return positive && negative
}

// Annualize converts a periodic rate into an annual rate.
func Annualize(rate float64, t periods.Type) float64 {
	return math.Pow(1+rate, float64(t.PerYear())) - 1
}

// PeriodRate converts an annual rate into the equivalent rate for one period of type t.
func PeriodRate(annual float64, t periods.Type) float64 {
	if annual <= -1 {
		return 0
	}
	return math.Pow(1+annual, 1/float64(t.PerYear())) - 1
}

// NPV discounts flows at the period rate derived from annualRate. Index 0
// is undiscounted, matching the IRR convention.
func NPV(flows []float64, annualRate float64, t periods.Type) float64 {
	if len(flows) == 0 {
		return 0
	}
	rate := PeriodRate(annualRate, t)
	factors := make([]float64, len(flows))
	for i := range factors {
		factors[i] = 1 / math.Pow(1+rate, float64(i))
	}
	return floats.Dot(flows, factors)
}

// Equity computes investment, proceeds, multiple, peak equity and payback.
func Equity(flows []float64) EquityResult {
	result := EquityResult{PaybackPeriod: 0, Cumulative: []float64{}}
	if len(flows) == 0 {
		return result
	}

	for _, cf := range flows {
		if cf < 0 {
			result.TotalInvestment -= cf
		} else {
			result.TotalProceeds += cf
		}
	}
	if result.TotalInvestment > 0 {
		result.Multiple = result.TotalProceeds / result.TotalInvestment
	}

	result.Cumulative = floats.CumSum(make([]float64, len(flows)), flows)
	result.PeakEquity = math.Min(0, floats.Min(result.Cumulative))

	wentNegative := false
	for i, c := range result.Cumulative {
		if c < 0 {
			wentNegative = true
			result.PaybackPeriod = -1
			continue
		}
		if wentNegative {
			result.PaybackPeriod = i
			break
		}
	}
	return result
}

// Total returns the sum of flows.
func Total(flows []float64) float64 {
	if len(flows) == 0 {
		return 0
	}
	return floats.Sum(flows)
}
