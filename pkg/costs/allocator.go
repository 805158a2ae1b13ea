// Package costs spreads budget line items across the periods they span and
// applies cost escalation.
package costs

import (
	"fmt"
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/curves"
	"github.com/iwvelando/land-cashflow/pkg/mathutil"
	"github.com/iwvelando/land-cashflow/pkg/resolve"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"go.uber.org/zap"
)

// TimingMethod controls how an amount is spread over periods.
type TimingMethod string

const (
	Lump   TimingMethod = "lump"
	Linear TimingMethod = "linear"
	Curve  TimingMethod = "curve"
)

// ParseTimingMethod maps a stored timing string to a method. The second
// return is false when the string was not recognized.
func ParseTimingMethod(value string) (TimingMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "lump", "lump_sum", "lumpsum", "milestone":
		return Lump, true
	case "linear", "distributed", "even", "":
		return Linear, true
	case "curve", "s-curve", "scurve", "s_curve":
		return Curve, true
	default:
		return Linear, false
	}
}

// BudgetItem is one budget row as supplied by the caller.
type BudgetItem struct {
	ID             string
	Category       string
	Subcategory    string
	Description    string
	Stage          string
	ContainerID    string
	ContainerName  string
	Quantity       float64
	Rate           float64
	Amount         *float64
	StartPeriod    int
	Duration       int
	Timing         string
	CurveID        string
	Steepness      *float64
	EscalationRate *float64
}

// BaseAmount returns the explicit amount when present, else quantity × rate.
func (b BudgetItem) BaseAmount() float64 {
	return resolve.Or(b.Quantity*b.Rate, resolve.Ptr(b.Amount))
}

// Method resolves the item's timing method. An empty timing with a curve
// id means a curve.
func (b BudgetItem) Method() (TimingMethod, bool) {
	if strings.TrimSpace(b.Timing) == "" && strings.TrimSpace(b.CurveID) != "" {
		return Curve, true
	}
	return ParseTimingMethod(b.Timing)
}

// Allocation is the resolved timing of one budget item.
type Allocation struct {
	SourceID         string
	Category         string
	Subcategory      string
	Description      string
	Stage            string
	ContainerID      string
	ContainerName    string
	BaseAmount       float64
	TotalAmount      float64
	EscalationRate   float64
	EscalationFactor float64
	StartPeriod      int
	Duration         int
	Method           TimingMethod
	Curve            string
	Steepness        float64
	Values           []schedule.PeriodValue
}

// Terms are the project-level inputs the allocator needs.
type Terms struct {
	CostInflationRate *float64
}

// Allocator distributes budget items over the project horizon.
type Allocator struct {
	logger *zap.Logger
}

// NewAllocator creates a new allocator with the given logger.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewAllocator(logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{logger: logger}
}

// Allocate resolves every item into an Allocation. Items whose start period
// falls outside [1, maxPeriods] are excluded with a warning. The returned
// allocations share no memory with the inputs.
func (a *Allocator) Allocate(items []BudgetItem, terms Terms, maxPeriods int) ([]Allocation, []string) {
	var warnings []string
	allocations := make([]Allocation, 0, len(items))

	for _, item := range items {
		if item.StartPeriod < 1 || item.StartPeriod > maxPeriods {
			msg := fmt.Sprintf("budget item %s (%s) starts in period %d outside 1..%d; excluded",
				item.ID, item.Category, item.StartPeriod, maxPeriods)
			a.logger.Warn(msg,
				zap.String("op", "costs.Allocate"),
				zap.String("item", item.ID),
				zap.Int("startPeriod", item.StartPeriod),
			)
			warnings = append(warnings, msg)
			continue
		}

		alloc, itemWarnings := a.allocateItem(item, terms, maxPeriods)
		warnings = append(warnings, itemWarnings...)
		allocations = append(allocations, alloc)
	}

	return allocations, warnings
}

func (a *Allocator) allocateItem(item BudgetItem, terms Terms, maxPeriods int) (Allocation, []string) {
	base := item.BaseAmount()
	values, warnings := a.Distribute(item, base, maxPeriods)

	rate := resolve.Float(0, item.EscalationRate, terms.CostInflationRate)
	factor := EscalationFactor(rate, item.StartPeriod-1)
	for i := range values {
		values[i].Amount *= factor
	}

	method, _ := item.Method()
	shape, _ := curves.Parse(item.CurveID)
	alloc := Allocation{
		SourceID:         item.ID,
		Category:         item.Category,
		Subcategory:      item.Subcategory,
		Description:      item.Description,
		Stage:            item.Stage,
		ContainerID:      item.ContainerID,
		ContainerName:    item.ContainerName,
		BaseAmount:       base,
		TotalAmount:      base * factor,
		EscalationRate:   rate,
		EscalationFactor: factor,
		StartPeriod:      item.StartPeriod,
		Duration:         len(values),
		Method:           method,
		Steepness:        resolve.Float(constants.DefaultSteepness, item.Steepness),
		Values:           values,
	}
	if method == Curve {
		alloc.Curve = shape.String()
	}

	a.logger.Debug("budget item allocated",
		zap.String("op", "costs.Allocate"),
		zap.String("item", item.ID),
		zap.String("method", string(method)),
		zap.Float64("total", alloc.TotalAmount),
		zap.Int("periods", len(values)),
	)
	return alloc, warnings
}

// Distribute spreads amount over the item's periods according to its timing
// method. The returned values always sum to amount: the final period
// absorbs any rounding drift. Unknown timing methods fall back to linear
// with a warning.
func (a *Allocator) Distribute(item BudgetItem, amount float64, maxPeriods int) ([]schedule.PeriodValue, []string) {
	var warnings []string

	method, ok := item.Method()
	if !ok {
		msg := fmt.Sprintf("budget item %s has unknown timing method %q; using linear", item.ID, item.Timing)
		a.logger.Warn(msg, zap.String("op", "costs.Distribute"), zap.String("item", item.ID))
		warnings = append(warnings, msg)
	}

	start := item.StartPeriod
	if start < 1 {
		start = 1
	}
	n := periodsToComplete(item.Duration, start, maxPeriods)

	var shares []float64
	switch method {
	case Lump:
		shares = []float64{amount}
	case Curve:
		shape, known := curves.Parse(item.CurveID)
		if !known {
			msg := fmt.Sprintf("budget item %s has unknown curve %q; using %s", item.ID, item.CurveID, shape)
			a.logger.Warn(msg, zap.String("op", "costs.Distribute"), zap.String("item", item.ID))
			warnings = append(warnings, msg)
		}
		steepness := resolve.Float(constants.DefaultSteepness, item.Steepness)
		shares = curveShares(amount, n, shape, steepness)
	default:
		shares = linearShares(amount, n)
	}

	correctLastShare(shares, amount)

	values := make([]schedule.PeriodValue, len(shares))
	for i, share := range shares {
		values[i] = schedule.PeriodValue{
			PeriodSequence: start + i,
			Amount:         share,
			Source:         schedule.SourceBudget,
		}
	}
	return values, warnings
}

// EscalationFactor compounds an annual rate over the given number of months.
// A zero rate or non-positive month count yields 1.
func EscalationFactor(annualRate float64, monthsFromStart int) float64 {
	return mathutil.CompoundFactor(annualRate, monthsFromStart)
}

// Escalate returns amount compounded at annualRate for monthsFromStart months.
func Escalate(amount, annualRate float64, monthsFromStart int) float64 {
	return amount * EscalationFactor(annualRate, monthsFromStart)
}

func periodsToComplete(duration, start, maxPeriods int) int {
	n := duration
	if n < 1 {
		n = 1
	}
	if available := maxPeriods - start + 1; available >= 1 && n > available {
		n = available
	}
	return n
}

func linearShares(amount float64, n int) []float64 {
	shares := make([]float64, n)
	per := amount / float64(n)
	for i := range shares {
		shares[i] = per
	}
	return shares
}

func curveShares(amount float64, n int, shape curves.Shape, steepness float64) []float64 {
	shares := make([]float64, n)
	prev := 0.0
	for i := 0; i < n; i++ {
		cum := shape.Cumulative(float64(i+1)/float64(n), steepness)
		shares[i] = amount * (cum - prev)
		prev = cum
	}
	return shares
}

// correctLastShare rewrites the last share so the shares sum to amount.
func correctLastShare(shares []float64, amount float64) {
	if len(shares) == 0 {
		return
	}
	last := len(shares) - 1
	shares[last] = mathutil.Remainder(amount, shares[:last])
}
