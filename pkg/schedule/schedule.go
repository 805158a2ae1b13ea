// Package schedule defines the cash-flow schedule produced by the engine:
// the period axis, categorized sections of line items, and the summary.
package schedule

import (
	"sort"
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/periods"
)

// Source marks where a period value came from.
type Source string

const (
	SourceBudget     Source = "budget"
	SourceAbsorption Source = "absorption"
	SourceCalculated Source = "calculated"
)

// PeriodValue is a signed amount posted to one period. Costs are negative
// and revenue is positive.
type PeriodValue struct {
	PeriodSequence int     `json:"periodSequence" yaml:"periodSequence" msgpack:"periodSequence"`
	Amount         float64 `json:"amount" yaml:"amount" msgpack:"amount"`
	Source         Source  `json:"source" yaml:"source" msgpack:"source"`
}

// SectionKind identifies the role of a section in the schedule.
type SectionKind string

const (
	KindGrossRevenue SectionKind = "gross_revenue"
	KindDeductions   SectionKind = "deductions"
	KindNetRevenue   SectionKind = "net_revenue"
	KindCost         SectionKind = "cost"
)

// IsRevenue reports whether the kind is one of the revenue sections.
func (k SectionKind) IsRevenue() bool {
	return k == KindGrossRevenue || k == KindDeductions || k == KindNetRevenue
}

// LineItem is one row of the schedule.
type LineItem struct {
	ID            string        `json:"id" yaml:"id" msgpack:"id"`
	Label         string        `json:"label" yaml:"label" msgpack:"label"`
	Category      string        `json:"category,omitempty" yaml:"category,omitempty" msgpack:"category,omitempty"`
	Subcategory   string        `json:"subcategory,omitempty" yaml:"subcategory,omitempty" msgpack:"subcategory,omitempty"`
	Description   string        `json:"description,omitempty" yaml:"description,omitempty" msgpack:"description,omitempty"`
	Stage         string        `json:"stage,omitempty" yaml:"stage,omitempty" msgpack:"stage,omitempty"`
	ContainerID   string        `json:"containerId,omitempty" yaml:"containerId,omitempty" msgpack:"containerId,omitempty"`
	ContainerName string        `json:"containerName,omitempty" yaml:"containerName,omitempty" msgpack:"containerName,omitempty"`
	Bucket        CostBucket    `json:"bucket,omitempty" yaml:"bucket,omitempty" msgpack:"bucket,omitempty"`
	Values        []PeriodValue `json:"values" yaml:"values" msgpack:"values"`
	Total         float64       `json:"total" yaml:"total" msgpack:"total"`
	Children      []LineItem    `json:"children,omitempty" yaml:"children,omitempty" msgpack:"children,omitempty"`
}

// AmountAt returns the line item's amount in the given period.
func (li LineItem) AmountAt(sequence int) float64 {
	var total float64
	for _, v := range li.Values {
		if v.PeriodSequence == sequence {
			total += v.Amount
		}
	}
	return total
}

// Section is an ordered group of line items with per-period subtotals.
type Section struct {
	ID        string      `json:"id" yaml:"id" msgpack:"id"`
	Name      string      `json:"name" yaml:"name" msgpack:"name"`
	Kind      SectionKind `json:"kind" yaml:"kind" msgpack:"kind"`
	// Memo sections are shown for detail but excluded from the net cash flow
	// because another section already carries their amounts.
	Memo      bool        `json:"memo,omitempty" yaml:"memo,omitempty" msgpack:"memo,omitempty"`
	LineItems []LineItem  `json:"lineItems" yaml:"lineItems" msgpack:"lineItems"`
	Subtotals []float64   `json:"subtotals" yaml:"subtotals" msgpack:"subtotals"`
	Total     float64     `json:"total" yaml:"total" msgpack:"total"`
}

// Schedule is the full period-by-period cash-flow result.
type Schedule struct {
	RunID       string           `json:"runId" yaml:"runId" msgpack:"runId"`
	ProjectID   string           `json:"projectId,omitempty" yaml:"projectId,omitempty" msgpack:"projectId,omitempty"`
	ProjectName string           `json:"projectName,omitempty" yaml:"projectName,omitempty" msgpack:"projectName,omitempty"`
	TimeScale   string           `json:"timeScale" yaml:"timeScale" msgpack:"timeScale"`
	GroupBy     string           `json:"groupBy" yaml:"groupBy" msgpack:"groupBy"`
	Periods     []periods.Period `json:"periods" yaml:"periods" msgpack:"periods"`
	Sections    []Section        `json:"sections" yaml:"sections" msgpack:"sections"`
	NetCashFlow []float64        `json:"netCashFlow" yaml:"netCashFlow" msgpack:"netCashFlow"`
	Summary     Summary          `json:"summary" yaml:"summary" msgpack:"summary"`
	Warnings    []string         `json:"warnings,omitempty" yaml:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// Summary holds the derived totals and investment metrics of a schedule.
type Summary struct {
	TotalGrossRevenue float64                `json:"totalGrossRevenue" yaml:"totalGrossRevenue" msgpack:"totalGrossRevenue"`
	TotalDeductions   float64                `json:"totalDeductions" yaml:"totalDeductions" msgpack:"totalDeductions"`
	TotalNetRevenue   float64                `json:"totalNetRevenue" yaml:"totalNetRevenue" msgpack:"totalNetRevenue"`
	TotalCosts        float64                `json:"totalCosts" yaml:"totalCosts" msgpack:"totalCosts"`
	CostsByBucket     map[CostBucket]float64 `json:"costsByBucket" yaml:"costsByBucket" msgpack:"costsByBucket"`
	GrossProfit       float64                `json:"grossProfit" yaml:"grossProfit" msgpack:"grossProfit"`
	GrossMargin       float64                `json:"grossMargin" yaml:"grossMargin" msgpack:"grossMargin"`
	// IRR is the periodic rate; both IRR fields are nil when the solver did not converge.
	IRR             *float64  `json:"irr" yaml:"irr" msgpack:"irr"`
	AnnualIRR       *float64  `json:"annualIrr" yaml:"annualIrr" msgpack:"annualIrr"`
	IRRIterations   int       `json:"irrIterations" yaml:"irrIterations" msgpack:"irrIterations"`
	DiscountRate    float64   `json:"discountRate" yaml:"discountRate" msgpack:"discountRate"`
	NPV             float64   `json:"npv" yaml:"npv" msgpack:"npv"`
	EquityMultiple  float64   `json:"equityMultiple" yaml:"equityMultiple" msgpack:"equityMultiple"`
	TotalInvestment float64   `json:"totalInvestment" yaml:"totalInvestment" msgpack:"totalInvestment"`
	TotalProceeds   float64   `json:"totalProceeds" yaml:"totalProceeds" msgpack:"totalProceeds"`
	PeakEquity      float64   `json:"peakEquity" yaml:"peakEquity" msgpack:"peakEquity"`
	// PaybackPeriod is the 0-based period at which cumulative flow recovers
	// after the first outflow; 0 if it never goes negative, -1 if it never recovers.
	PaybackPeriod   int       `json:"paybackPeriod" yaml:"paybackPeriod" msgpack:"paybackPeriod"`
	Cumulative      []float64 `json:"cumulative" yaml:"cumulative" msgpack:"cumulative"`
}

// NewLineItem builds a line item from values, merging duplicate periods,
// ordering by period and computing the total.
func NewLineItem(item LineItem, values []PeriodValue) LineItem {
	item.Values = MergeValues(values)
	item.Total = SumValues(item.Values)
	return item
}

// NewSection builds a section over n periods, computing per-period subtotals
// and the section total from its line items.
func NewSection(id, name string, kind SectionKind, memo bool, items []LineItem, ps []periods.Period) Section {
	index := SequenceIndex(ps)
	subtotals := make([]float64, len(ps))
	var total float64
	for _, li := range items {
		for _, v := range li.Values {
			if i, ok := index[v.PeriodSequence]; ok {
				subtotals[i] += v.Amount
			}
		}
		total += li.Total
	}
	return Section{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Memo:      memo,
		LineItems: items,
		Subtotals: subtotals,
		Total:     total,
	}
}

// NetCashFlow sums the subtotals of every non-memo section.
func NetCashFlow(sections []Section, n int) []float64 {
	net := make([]float64, n)
	for _, s := range sections {
		if s.Memo {
			continue
		}
		for i := 0; i < n && i < len(s.Subtotals); i++ {
			net[i] += s.Subtotals[i]
		}
	}
	return net
}

// MergeValues sums values that share a period and orders the result by period.
// Zero-sum periods are kept so a line's footprint survives re-bucketing.
func MergeValues(values []PeriodValue) []PeriodValue {
	if len(values) == 0 {
		return []PeriodValue{}
	}
	acc := make(map[int]*PeriodValue, len(values))
	for _, v := range values {
		if existing, ok := acc[v.PeriodSequence]; ok {
			existing.Amount += v.Amount
			if existing.Source != v.Source {
				existing.Source = SourceCalculated
			}
			continue
		}
		copied := v
		acc[v.PeriodSequence] = &copied
	}
	out := make([]PeriodValue, 0, len(acc))
	for _, v := range acc {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodSequence < out[j].PeriodSequence })
	return out
}

// SumValues returns the sum of the amounts.
func SumValues(values []PeriodValue) float64 {
	var total float64
	for _, v := range values {
		total += v.Amount
	}
	return total
}

// Negate returns a copy of values with every amount sign-flipped.
func Negate(values []PeriodValue) []PeriodValue {
	out := make([]PeriodValue, len(values))
	for i, v := range values {
		v.Amount = -v.Amount
		out[i] = v
	}
	return out
}

// SequenceIndex maps period sequence numbers to their position in ps.
func SequenceIndex(ps []periods.Period) map[int]int {
	index := make(map[int]int, len(ps))
	for i, p := range ps {
		index[p.Sequence] = i
	}
	return index
}

// GrandTotal sums the totals of the sections, optionally skipping memo sections.
func (s *Schedule) GrandTotal(includeMemo bool) float64 {
	var total float64
	for _, sec := range s.Sections {
		if sec.Memo && !includeMemo {
			continue
		}
		total += sec.Total
	}
	return total
}

// FindSection returns the first section with the given id.
func (s *Schedule) FindSection(id string) (*Section, bool) {
	for i := range s.Sections {
		if s.Sections[i].ID == id {
			return &s.Sections[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the schedule.
func (s *Schedule) Clone() *Schedule {
	if s == nil {
		return nil
	}
	out := *s
	out.Periods = clonePeriods(s.Periods)
	out.Sections = make([]Section, len(s.Sections))
	for i, sec := range s.Sections {
		out.Sections[i] = sec.Clone()
	}
	out.NetCashFlow = append([]float64(nil), s.NetCashFlow...)
	out.Warnings = append([]string(nil), s.Warnings...)
	out.Summary = s.Summary.Clone()
	return &out
}

// Clone returns a deep copy of the section.
func (sec Section) Clone() Section {
	out := sec
	out.Subtotals = append([]float64(nil), sec.Subtotals...)
	out.LineItems = make([]LineItem, len(sec.LineItems))
	for i, li := range sec.LineItems {
		out.LineItems[i] = li.Clone()
	}
	return out
}

// Clone returns a deep copy of the line item.
func (li LineItem) Clone() LineItem {
	out := li
	out.Values = append([]PeriodValue(nil), li.Values...)
	if li.Children != nil {
		out.Children = make([]LineItem, len(li.Children))
		for i, c := range li.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of the summary.
func (sm Summary) Clone() Summary {
	out := sm
	if sm.CostsByBucket != nil {
		out.CostsByBucket = make(map[CostBucket]float64, len(sm.CostsByBucket))
		for k, v := range sm.CostsByBucket {
			out.CostsByBucket[k] = v
		}
	}
	if sm.IRR != nil {
		v := *sm.IRR
		out.IRR = &v
	}
	if sm.AnnualIRR != nil {
		v := *sm.AnnualIRR
		out.AnnualIRR = &v
	}
	out.Cumulative = append([]float64(nil), sm.Cumulative...)
	return out
}

func clonePeriods(ps []periods.Period) []periods.Period {
	out := make([]periods.Period, len(ps))
	for i, p := range ps {
		p.SourceIndices = append([]int(nil), p.SourceIndices...)
		out[i] = p
	}
	return out
}

// Slug turns a free-text name into a lowercase dash-separated identifier.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
