package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/costs"
	"github.com/iwvelando/land-cashflow/pkg/datetime"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fptr(v float64) *float64 {
	return &v
}

func iptr(v int) *int {
	return &v
}

func scenarioInputs() Inputs {
	return Inputs{
		Project: Project{
			ID:           "proj-1",
			Name:         "Meadow Ridge",
			StartDate:    datetime.MustParse("2025-01-01"),
			DiscountRate: 0.10,
		},
		Budget: []costs.BudgetItem{
			{
				ID:          "b1",
				Category:    "Site Development",
				Description: "Mass grading",
				Stage:       "Development",
				Amount:      fptr(1200000),
				StartPeriod: 1,
				Duration:    12,
				Timing:      "linear",
			},
		},
		Parcels: []absorption.Parcel{
			{ID: "p1", Name: "Lot Block A", ContainerID: "ph1", ContainerName: "Phase 1", LandUseType: "SFD", Units: fptr(10), SalePeriod: iptr(12)},
		},
		Pricing: []absorption.PricingRecord{
			{LandUseType: "SFD", PricePerUnit: 50000, UnitOfMeasure: "EA"},
		},
		Benchmarks: []absorption.Benchmark{
			{Scope: absorption.ScopeGlobal, CommissionRate: fptr(0.03), ClosingCostRate: fptr(0.02), ClosingCostPerUnit: fptr(750)},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	eng := New(zap.NewNop())
	result, err := eng.Run(context.Background(), scenarioInputs())
	require.NoError(t, err)

	require.Len(t, result.Periods, 12)
	assert.Equal(t, "Jan 2025", result.Periods[0].Label)
	assert.Equal(t, "monthly", result.TimeScale)
	assert.Equal(t, "none", result.GroupBy)
	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, result.Warnings)

	require.Len(t, result.Sections, 4)
	assert.Equal(t, SectionGrossRevenue, result.Sections[0].ID)
	assert.Equal(t, SectionDeductions, result.Sections[1].ID)
	assert.Equal(t, SectionNetRevenue, result.Sections[2].ID)
	assert.Equal(t, "cost-site-development", result.Sections[3].ID)

	costSection := result.Sections[3]
	for i := 0; i < 12; i++ {
		assert.InDelta(t, -100000, costSection.Subtotals[i], 1e-6, "cost in period %d", i+1)
	}

	gross, _ := result.FindSection(SectionGrossRevenue)
	assert.InDelta(t, 500000, gross.Subtotals[11], 1e-6)
	deductions, _ := result.FindSection(SectionDeductions)
	assert.InDelta(t, -25000, deductions.Subtotals[11], 1e-6)
	commission := deductions.LineItems[0]
	assert.Equal(t, "commission", commission.ID)
	assert.InDelta(t, -15000, commission.Total, 1e-6)
	closing := deductions.LineItems[1]
	assert.Equal(t, "closing-costs", closing.ID)
	assert.InDelta(t, -10000, closing.Total, 1e-6)
	net, _ := result.FindSection(SectionNetRevenue)
	assert.InDelta(t, 475000, net.Subtotals[11], 1e-6)
	assert.Equal(t, "Phase 1", net.LineItems[0].ContainerName)

	for i := 0; i < 11; i++ {
		assert.InDelta(t, -100000, result.NetCashFlow[i], 1e-6, "net flow in period %d", i+1)
	}
	assert.InDelta(t, 375000, result.NetCashFlow[11], 1e-6)

	summary := result.Summary
	assert.InDelta(t, 500000, summary.TotalGrossRevenue, 1e-6)
	assert.InDelta(t, 25000, summary.TotalDeductions, 1e-6)
	assert.InDelta(t, 475000, summary.TotalNetRevenue, 1e-6)
	assert.InDelta(t, 1200000, summary.TotalCosts, 1e-6)
	assert.InDelta(t, 1200000, summary.CostsByBucket[schedule.BucketDevelopment], 1e-6)
	assert.Zero(t, summary.CostsByBucket[schedule.BucketAcquisition])
	assert.InDelta(t, -725000, summary.GrossProfit, 1e-6)
	assert.InDelta(t, -1100000, summary.PeakEquity, 1e-6)
	assert.Equal(t, -1, summary.PaybackPeriod)
	require.NotNil(t, summary.IRR)
	assert.Less(t, *summary.IRR, 0.0)
}

func TestRunNetCashFlowMatchesNonMemoSections(t *testing.T) {
	in := scenarioInputs()
	in.Budget = append(in.Budget, costs.BudgetItem{
		ID: "b2", Category: "Land Acquisition", Amount: fptr(3000000), StartPeriod: 1, Timing: "lump",
	}, costs.BudgetItem{
		ID: "b3", Category: "Site Development", Description: "Paving", Amount: fptr(400000), StartPeriod: 6, Duration: 10, Timing: "curve", CurveID: "S",
	})
	in.Parcels = append(in.Parcels, absorption.Parcel{
		ID: "p2", LandUseType: "SFD", Units: fptr(12), SalePeriod: iptr(18),
	})

	result, err := New(nil).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.Periods, 18)

	require.Len(t, result.Sections, 5)
	assert.Equal(t, "Site Development", result.Sections[3].Name)
	assert.Equal(t, "Land Acquisition", result.Sections[4].Name)
	assert.Len(t, result.Sections[3].LineItems, 2)

	for i := range result.Periods {
		var expected float64
		for _, sec := range result.Sections {
			if sec.Kind == schedule.KindNetRevenue || sec.Kind == schedule.KindCost {
				expected += sec.Subtotals[i]
			}
		}
		assert.InDelta(t, expected, result.NetCashFlow[i], 1e-6)
	}

	gross, _ := result.FindSection(SectionGrossRevenue)
	deductions, _ := result.FindSection(SectionDeductions)
	net, _ := result.FindSection(SectionNetRevenue)
	assert.InDelta(t, gross.Total+deductions.Total, net.Total, 1e-6)

	assert.InDelta(t, 3000000, result.Summary.CostsByBucket[schedule.BucketAcquisition], 1e-6)
	assert.InDelta(t, 1600000, result.Summary.CostsByBucket[schedule.BucketDevelopment], 1e-6)
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Inputs)
		sentinel error
	}{
		{"No inputs", func(in *Inputs) { in.Budget = nil; in.Parcels = nil }, ErrNoInputs},
		{"No start date", func(in *Inputs) { in.Project.StartDate = datetime.Date{} }, ErrNoPeriods},
		{"Nothing scheduled", func(in *Inputs) {
			in.Budget[0].StartPeriod = 0
			in.Parcels[0].SalePeriod = nil
		}, ErrNoPeriods},
		{"Strict pricing", func(in *Inputs) {
			in.Project.StrictPricing = true
			in.Pricing = nil
		}, absorption.ErrNoPricing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := scenarioInputs()
			tt.mutate(&in)
			_, err := New(nil).Run(context.Background(), in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
		})
	}
}

func TestRunInputErrorNamesInput(t *testing.T) {
	in := scenarioInputs()
	in.Budget, in.Parcels = nil, nil
	_, err := New(nil).Run(context.Background(), in)

	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	assert.Equal(t, "budget and parcels", inputErr.Input)
}

func TestRunLenientPricingWarns(t *testing.T) {
	in := scenarioInputs()
	in.Pricing = nil

	result, err := New(nil).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "p1")

	net, _ := result.FindSection(SectionNetRevenue)
	assert.Empty(t, net.LineItems)
	assert.Zero(t, result.Summary.TotalGrossRevenue)
	assert.Nil(t, result.Summary.IRR, "all-negative flows have no IRR")
}

func TestRunListsInputWarningsFirst(t *testing.T) {
	in := scenarioInputs()
	in.Pricing = nil
	in.Warnings = []string{"budget item fencing excluded: amount: \"n/a\" is not a number"}

	result, err := New(nil).Run(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, in.Warnings[0], result.Warnings[0])
	assert.Contains(t, result.Warnings[1], "p1")
}

func TestRunHorizon(t *testing.T) {
	in := scenarioInputs()
	in.Project.MinPeriods = 24
	result, err := New(nil).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, result.Periods, 24)
	assert.Equal(t, "Dec 2026", result.Periods[23].Label)

	in = scenarioInputs()
	in.Project.MaxPeriods = 6
	result, err = New(nil).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, result.Periods, 6)
	require.Len(t, result.Warnings, 1, "sale beyond the capped horizon")
	assert.InDelta(t, -1200000, result.Sections[3].Total, 1e-6, "linear spread clipped to the horizon keeps its total")
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Run(ctx, scenarioInputs())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunIDIsFreshPerRun(t *testing.T) {
	eng := New(nil)
	ids := []string{"run-a", "run-b"}
	eng.newRunID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	first, err := eng.Run(context.Background(), scenarioInputs())
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), scenarioInputs())
	require.NoError(t, err)
	assert.Equal(t, "run-a", first.RunID)
	assert.Equal(t, "run-b", second.RunID)
	assert.Equal(t, first.NetCashFlow, second.NetCashFlow)
}

func TestHorizonPeriods(t *testing.T) {
	in := Inputs{
		Budget: []costs.BudgetItem{
			{StartPeriod: 3, Duration: 10},
			{StartPeriod: 20},
			{StartPeriod: -1, Duration: 99},
		},
		Parcels: []absorption.Parcel{{SalePeriod: iptr(15)}, {}},
	}
	assert.Equal(t, 20, in.HorizonPeriods())
	in.Project.MinPeriods = 36
	assert.Equal(t, 36, in.HorizonPeriods())
	in.Project.MaxPeriods = 30
	assert.Equal(t, 30, in.HorizonPeriods())
}
