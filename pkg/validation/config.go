package validation

import (
	"fmt"

	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/costs"
	"github.com/iwvelando/land-cashflow/pkg/curves"
	"github.com/iwvelando/land-cashflow/pkg/datetime"
)

// InputValidator checks project inputs for problems that do not stop a run
// but usually indicate a data entry mistake.
type InputValidator struct {
	StartDate         datetime.Date
	CostInflationRate *float64
	PriceGrowthRate   *float64
	DiscountRate      float64
	Budget            []costs.BudgetItem
	Parcels           []absorption.Parcel
	Pricing           []absorption.PricingRecord
}

// ValidateRate warns about a negative or implausibly large annual rate
// entered as a percentage rather than a decimal.
func ValidateRate(name string, rate *float64) string {
	if rate == nil {
		return ""
	}
	switch {
	case *rate < 0:
		return fmt.Sprintf("%s is negative (%.4f)", name, *rate)
	case *rate >= 1:
		return fmt.Sprintf("%s is %.4f; rates are decimals (0.03 = 3%%)", name, *rate)
	}
	return ""
}

// ValidateBudgetItem returns warnings for one budget row.
func ValidateBudgetItem(item costs.BudgetItem) []string {
	var warnings []string
	label := fmt.Sprintf("Budget item '%s'", item.ID)

	if item.StartPeriod < 1 {
		warnings = append(warnings, fmt.Sprintf("%s has no start period", label))
	}
	if item.Duration < 1 {
		warnings = append(warnings, fmt.Sprintf("%s has no duration; treated as one period", label))
	}
	if item.BaseAmount() == 0 {
		warnings = append(warnings, fmt.Sprintf("%s has a zero amount", label))
	}
	if _, ok := item.Method(); !ok {
		warnings = append(warnings, fmt.Sprintf("%s has unknown timing method '%s'", label, item.Timing))
	}
	if item.CurveID != "" {
		if _, ok := curves.Parse(item.CurveID); !ok {
			warnings = append(warnings, fmt.Sprintf("%s has unknown curve '%s'", label, item.CurveID))
		}
	}
	if w := ValidateRate(label+" escalation rate", item.EscalationRate); w != "" {
		warnings = append(warnings, w)
	}
	return warnings
}

// ValidateParcel returns warnings for one parcel row.
func ValidateParcel(parcel absorption.Parcel) []string {
	var warnings []string
	label := fmt.Sprintf("Parcel '%s'", parcel.ID)

	if parcel.SalePeriod == nil {
		warnings = append(warnings, fmt.Sprintf("%s has no sale period and will not be sold", label))
	}
	if (parcel.Units == nil || *parcel.Units <= 0) && (parcel.Acres == nil || *parcel.Acres <= 0) {
		warnings = append(warnings, fmt.Sprintf("%s has neither units nor acres", label))
	}
	if (parcel.GrossPrice == nil) != (parcel.NetProceeds == nil) {
		warnings = append(warnings, fmt.Sprintf("%s has only one of gross price and net proceeds; unit pricing is used", label))
	}
	if parcel.GrossPrice != nil && parcel.NetProceeds != nil && *parcel.NetProceeds > *parcel.GrossPrice {
		warnings = append(warnings, fmt.Sprintf("%s net proceeds exceed gross price", label))
	}
	return warnings
}

// ValidateAll validates the inputs and returns warnings.
func (v *InputValidator) ValidateAll() []string {
	var warnings []string

	if v.StartDate.IsZero() {
		warnings = append(warnings, "Project has no start date")
	}
	for _, w := range []string{
		ValidateRate("Project cost inflation rate", v.CostInflationRate),
		ValidateRate("Project price growth rate", v.PriceGrowthRate),
		ValidateRate("Project discount rate", &v.DiscountRate),
	} {
		if w != "" {
			warnings = append(warnings, w)
		}
	}

	seen := make(map[string]bool, len(v.Budget))
	for _, item := range v.Budget {
		if item.ID != "" && seen[item.ID] {
			warnings = append(warnings, fmt.Sprintf("Budget item id '%s' is duplicated", item.ID))
		}
		seen[item.ID] = true
		warnings = append(warnings, ValidateBudgetItem(item)...)
	}

	for _, parcel := range v.Parcels {
		warnings = append(warnings, ValidateParcel(parcel)...)
	}

	for _, p := range v.Pricing {
		if p.PricePerUnit <= 0 {
			warnings = append(warnings, fmt.Sprintf("Pricing for land use '%s' product '%s' has no price", p.LandUseType, p.ProductCode))
		}
		if _, ok := absorption.ParseUnitOfMeasure(p.UnitOfMeasure); !ok {
			warnings = append(warnings, fmt.Sprintf("Pricing for land use '%s' has unknown unit of measure '%s'", p.LandUseType, p.UnitOfMeasure))
		}
	}

	return warnings
}
