// Package testutil provides common fixtures and helpers for testing.
package testutil

import (
	"context"
	"testing"

	"github.com/iwvelando/land-cashflow/internal/engine"
	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/costs"
	"github.com/iwvelando/land-cashflow/pkg/datetime"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
)

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// ScenarioInputs returns a small two-phase project: a $1.2M linear site
// development budget over months 1-12 and ten $50,000 lots selling in month
// 12 with 3% commission and closing costs of max(2%, $750/unit).
func ScenarioInputs() engine.Inputs {
	return engine.Inputs{
		Project: engine.Project{
			ID:           "meadow-ridge",
			Name:         "Meadow Ridge",
			StartDate:    datetime.MustParse("2025-01-01"),
			DiscountRate: 0.10,
		},
		Budget: []costs.BudgetItem{
			{
				ID:            "grading",
				Category:      "Site Development",
				Description:   "Mass grading",
				Stage:         "development",
				ContainerID:   "ph1",
				ContainerName: "Phase 1",
				Amount:        Float(1200000),
				StartPeriod:   1,
				Duration:      12,
				Timing:        "linear",
			},
		},
		Parcels: []absorption.Parcel{
			{
				ID:            "lots-a",
				Name:          "Block A lots",
				ContainerID:   "ph1",
				ContainerName: "Phase 1",
				LandUseType:   "SFD",
				Units:         Float(10),
				SalePeriod:    Int(12),
			},
		},
		Pricing: []absorption.PricingRecord{
			{LandUseType: "SFD", PricePerUnit: 50000, UnitOfMeasure: "EA"},
		},
		Benchmarks: []absorption.Benchmark{
			{
				Scope:              absorption.ScopeGlobal,
				CommissionRate:     Float(0.03),
				ClosingCostRate:    Float(0.02),
				ClosingCostPerUnit: Float(750),
			},
		},
	}
}

// RunScenario runs the engine over ScenarioInputs and fails the test on error.
func RunScenario(tb testing.TB) *schedule.Schedule {
	tb.Helper()
	s, err := engine.New(nil).Run(context.Background(), ScenarioInputs())
	if err != nil {
		tb.Fatalf("running scenario: %v", err)
	}
	return s
}

// FindLineItem finds a line item by id across every section of s.
// Returns a pointer to the line item if found, nil otherwise.
func FindLineItem(s *schedule.Schedule, id string) *schedule.LineItem {
	for i := range s.Sections {
		for j := range s.Sections[i].LineItems {
			if s.Sections[i].LineItems[j].ID == id {
				return &s.Sections[i].LineItems[j]
			}
		}
	}
	return nil
}
