package engine

import (
	"errors"
	"fmt"

	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/costs"
	"github.com/iwvelando/land-cashflow/pkg/datetime"
)

var (
	// ErrNoPeriods is returned when a project has no calculation periods.
	ErrNoPeriods = errors.New("no calculation periods available")

	// ErrNoInputs is returned when a project has neither budget nor parcel data.
	ErrNoInputs = errors.New("no budget or parcel data")
)

// InputError names the input collection that made a run impossible.
type InputError struct {
	Input string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %v", e.Input, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Project holds the project-level settings of a run.
type Project struct {
	ID        string
	Name      string
	StartDate datetime.Date
	// CostInflationRate is the fallback annual escalation rate for budget items.
	CostInflationRate *float64
	// PriceGrowthRate is the DCF annual price growth rate for sales.
	PriceGrowthRate *float64
	// DiscountRate is the annual rate used for NPV.
	DiscountRate float64
	// MinPeriods extends the horizon beyond the last budget or sale period.
	MinPeriods int
	// MaxPeriods caps the horizon when positive.
	MaxPeriods    int
	StrictPricing bool
}

// Inputs is everything a run needs, fetched up front by the caller.
type Inputs struct {
	Project    Project
	Budget     []costs.BudgetItem
	Parcels    []absorption.Parcel
	Pricing    []absorption.PricingRecord
	Benchmarks []absorption.Benchmark
	// Warnings reports input rows the caller excluded while loading. Run
	// lists them ahead of its own warnings.
	Warnings []string
}

// HorizonPeriods returns the number of monthly periods the run covers: the
// latest budget end or sale period, at least MinPeriods and at most
// MaxPeriods when that is set.
func (in Inputs) HorizonPeriods() int {
	n := in.Project.MinPeriods
	for _, item := range in.Budget {
		if item.StartPeriod < 1 {
			continue
		}
		n = max(n, item.StartPeriod+max(item.Duration, 1)-1)
	}
	for _, parcel := range in.Parcels {
		if parcel.SalePeriod != nil {
			n = max(n, *parcel.SalePeriod)
		}
	}
	if in.Project.MaxPeriods > 0 {
		n = min(n, in.Project.MaxPeriods)
	}
	return n
}
