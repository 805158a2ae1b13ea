package engine

import (
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/costs"
	"github.com/iwvelando/land-cashflow/pkg/periods"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
)

// Fixed revenue section identifiers.
const (
	SectionGrossRevenue = "gross-revenue"
	SectionDeductions   = "deductions"
	SectionNetRevenue   = "net-revenue"
)

const uncategorized = "Uncategorized"

// RevenueSections builds the gross revenue, deductions and net revenue
// sections. Gross revenue and deductions are memo sections: the net revenue
// section already carries their combined effect.
func RevenueSections(sales []absorption.ParcelSale, ps []periods.Period) []schedule.Section {
	gross := make([]schedule.LineItem, 0, len(sales))
	net := make([]schedule.LineItem, 0, len(sales))
	for _, sale := range sales {
		gross = append(gross, saleLine(sale, "Gross Revenue", sale.GrossRevenue))
		net = append(net, saleLine(sale, "Net Revenue", sale.NetRevenue))
	}

	return []schedule.Section{
		schedule.NewSection(SectionGrossRevenue, "Gross Revenue", schedule.KindGrossRevenue, true, gross, ps),
		schedule.NewSection(SectionDeductions, "Sale Deductions", schedule.KindDeductions, true, deductionLines(sales), ps),
		schedule.NewSection(SectionNetRevenue, "Net Revenue", schedule.KindNetRevenue, false, net, ps),
	}
}

func saleLine(sale absorption.ParcelSale, category string, amount float64) schedule.LineItem {
	label := sale.ParcelName
	if label == "" {
		label = sale.ParcelID
	}
	return schedule.NewLineItem(schedule.LineItem{
		ID:            sale.ParcelID,
		Label:         label,
		Category:      category,
		Subcategory:   strings.TrimSpace(sale.LandUseType + " " + sale.ProductCode),
		Stage:         "disposition",
		ContainerID:   sale.ContainerID,
		ContainerName: sale.ContainerName,
	}, []schedule.PeriodValue{{
		PeriodSequence: sale.SalePeriod,
		Amount:         amount,
		Source:         schedule.SourceAbsorption,
	}})
}

// deductionLines emits one line per deduction type that any sale carries.
func deductionLines(sales []absorption.ParcelSale) []schedule.LineItem {
	kinds := []struct {
		id    string
		label string
		get   func(absorption.Deductions) float64
	}{
		{"commission", "Commissions", func(d absorption.Deductions) float64 { return d.Commission }},
		{"closing-costs", "Closing Costs", func(d absorption.Deductions) float64 { return d.ClosingCost }},
		{"improvement-costs", "Improvement Costs", func(d absorption.Deductions) float64 { return d.ImprovementCost }},
		{"other-deductions", "Other Deductions", func(d absorption.Deductions) float64 { return d.Other }},
	}

	var items []schedule.LineItem
	for _, kind := range kinds {
		var values []schedule.PeriodValue
		for _, sale := range sales {
			if amount := kind.get(sale.Deductions); amount != 0 {
				values = append(values, schedule.PeriodValue{
					PeriodSequence: sale.SalePeriod,
					Amount:         -amount,
					Source:         schedule.SourceAbsorption,
				})
			}
		}
		if len(values) == 0 {
			continue
		}
		items = append(items, schedule.NewLineItem(schedule.LineItem{
			ID:       kind.id,
			Label:    kind.label,
			Category: "Sale Deductions",
			Stage:    "disposition",
		}, values))
	}
	return items
}

// CostSections builds one section per budget category in first-seen order,
// with one line item per allocation and amounts negated as outflows.
func CostSections(allocations []costs.Allocation, ps []periods.Period) []schedule.Section {
	var order []string
	byCategory := make(map[string][]schedule.LineItem)

	for _, alloc := range allocations {
		category := strings.TrimSpace(alloc.Category)
		if category == "" {
			category = uncategorized
		}
		if _, seen := byCategory[category]; !seen {
			order = append(order, category)
		}
		byCategory[category] = append(byCategory[category], costLine(alloc, category))
	}

	sections := make([]schedule.Section, 0, len(order))
	for _, category := range order {
		sections = append(sections, schedule.NewSection(
			"cost-"+schedule.Slug(category), category, schedule.KindCost, false, byCategory[category], ps,
		))
	}
	return sections
}

func costLine(alloc costs.Allocation, category string) schedule.LineItem {
	label := alloc.Description
	if label == "" {
		label = alloc.Subcategory
	}
	if label == "" {
		label = category
	}
	return schedule.NewLineItem(schedule.LineItem{
		ID:            alloc.SourceID,
		Label:         label,
		Category:      category,
		Subcategory:   alloc.Subcategory,
		Description:   alloc.Description,
		Stage:         schedule.NormalizeStage(alloc.Stage),
		ContainerID:   alloc.ContainerID,
		ContainerName: alloc.ContainerName,
		Bucket:        schedule.Classify(category, alloc.Subcategory),
	}, schedule.Negate(alloc.Values))
}
