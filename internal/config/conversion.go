// Package config defines conversion utilities for configuration objects.
package config

import (
	"fmt"

	"github.com/iwvelando/land-cashflow/internal/engine"
	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/costs"
)

// ToProject converts the project section into engine project settings.
func (p Project) ToProject() (engine.Project, error) {
	start, err := p.ParsedStartDate()
	if err != nil {
		return engine.Project{}, fmt.Errorf("project start date: %w", err)
	}
	return engine.Project{
		ID:                p.ID,
		Name:              p.Name,
		StartDate:         start,
		CostInflationRate: p.CostInflationRate,
		PriceGrowthRate:   p.PriceGrowthRate,
		DiscountRate:      p.DiscountRate,
		MinPeriods:        p.MinPeriods,
		MaxPeriods:        p.MaxPeriods,
		StrictPricing:     p.StrictPricing,
	}, nil
}

// ToBudgetItem converts a config budget row to a costs.BudgetItem.
func (b BudgetItem) ToBudgetItem() costs.BudgetItem {
	return costs.BudgetItem{
		ID:             b.ID,
		Category:       b.Category,
		Subcategory:    b.Subcategory,
		Description:    b.Description,
		Stage:          b.Stage,
		ContainerID:    b.ContainerID,
		ContainerName:  b.ContainerName,
		Quantity:       b.Quantity,
		Rate:           b.Rate,
		Amount:         b.Amount,
		StartPeriod:    b.StartPeriod,
		Duration:       b.Duration,
		Timing:         b.Timing,
		CurveID:        b.Curve,
		Steepness:      b.Steepness,
		EscalationRate: b.EscalationRate,
	}
}

// ToParcel converts a config parcel row to an absorption.Parcel.
func (p Parcel) ToParcel() absorption.Parcel {
	return absorption.Parcel{
		ID:               p.ID,
		Name:             p.Name,
		ContainerID:      p.ContainerID,
		ContainerName:    p.ContainerName,
		LandUseType:      p.LandUseType,
		ProductCode:      p.ProductCode,
		Units:            p.Units,
		Acres:            p.Acres,
		LotWidth:         p.LotWidth,
		LotArea:          p.LotArea,
		SalePeriod:       p.SalePeriod,
		GrossPrice:       p.GrossPrice,
		NetProceeds:      p.NetProceeds,
		TransactionCosts: p.TransactionCosts,
	}
}

// ToBenchmark converts a config benchmark to an absorption.Benchmark. The
// scope is case-insensitive and an empty scope is global.
func (b Benchmark) ToBenchmark() (absorption.Benchmark, error) {
	scope, ok := absorption.ParseScope(b.Scope)
	if !ok {
		return absorption.Benchmark{}, fmt.Errorf("unknown benchmark scope %q", b.Scope)
	}
	return absorption.Benchmark{
		Scope:                  scope,
		ProjectID:              b.ProjectID,
		LandUseType:            b.LandUseType,
		ProductCode:            b.ProductCode,
		CommissionRate:         b.CommissionRate,
		ClosingCostRate:        b.ClosingCostRate,
		ClosingCostPerUnit:     b.ClosingCostPerUnit,
		ImprovementCostPerUnit: b.ImprovementCostPerUnit,
	}, nil
}

// BudgetItems returns the budget section as costs.BudgetItem values.
func (c *Configuration) BudgetItems() []costs.BudgetItem {
	out := make([]costs.BudgetItem, 0, len(c.Budget))
	for _, b := range c.Budget {
		out = append(out, b.ToBudgetItem())
	}
	return out
}

// ParcelRows returns the parcels section as absorption.Parcel values.
func (c *Configuration) ParcelRows() []absorption.Parcel {
	out := make([]absorption.Parcel, 0, len(c.Parcels))
	for _, p := range c.Parcels {
		out = append(out, p.ToParcel())
	}
	return out
}

// PricingRecords returns the pricing section as absorption.PricingRecord values.
func (c *Configuration) PricingRecords() []absorption.PricingRecord {
	out := make([]absorption.PricingRecord, 0, len(c.Pricing))
	for _, p := range c.Pricing {
		out = append(out, absorption.PricingRecord{
			LandUseType:   p.LandUseType,
			ProductCode:   p.ProductCode,
			PricePerUnit:  p.PricePerUnit,
			UnitOfMeasure: p.UnitOfMeasure,
			GrowthRate:    p.GrowthRate,
		})
	}
	return out
}

// ToInputs converts the input sections of the configuration into the
// inputs of an engine run.
func (c *Configuration) ToInputs() (*engine.Inputs, error) {
	project, err := c.Project.ToProject()
	if err != nil {
		return nil, err
	}

	var warnings []string
	benchmarks := make([]absorption.Benchmark, 0, len(c.Benchmarks))
	for i, b := range c.Benchmarks {
		bm, err := b.ToBenchmark()
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("benchmark %d excluded: %v", i+1, err))
			continue
		}
		benchmarks = append(benchmarks, bm)
	}

	return &engine.Inputs{
		Project:    project,
		Budget:     c.BudgetItems(),
		Parcels:    c.ParcelRows(),
		Pricing:    c.PricingRecords(),
		Benchmarks: benchmarks,
		Warnings:   warnings,
	}, nil
}
