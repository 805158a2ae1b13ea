package aggregation

import (
	"testing"

	"github.com/iwvelando/land-cashflow/pkg/datetime"
	"github.com/iwvelando/land-cashflow/pkg/periods"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(item schedule.LineItem, amounts map[int]float64) schedule.LineItem {
	values := make([]schedule.PeriodValue, 0, len(amounts))
	for seq, amount := range amounts {
		values = append(values, schedule.PeriodValue{PeriodSequence: seq, Amount: amount, Source: schedule.SourceBudget})
	}
	if item.Bucket == "" && item.Category != "" {
		item.Bucket = schedule.Classify(item.Category, item.Subcategory)
	}
	return schedule.NewLineItem(item, values)
}

// testSchedule spans Nov 2025 through Dec 2026 so quarters and years are
// split across calendar boundaries.
func testSchedule(t *testing.T) *schedule.Schedule {
	t.Helper()
	ps, err := periods.GenerateCount(datetime.MustParse("2025-11-01"), 14)
	require.NoError(t, err)

	sections := []schedule.Section{
		schedule.NewSection("gross-revenue", "Gross Revenue", schedule.KindGrossRevenue, true,
			[]schedule.LineItem{line(schedule.LineItem{ID: "p1", ContainerID: "ph1"}, map[int]float64{14: 1000})}, ps),
		schedule.NewSection("deductions", "Sale Deductions", schedule.KindDeductions, true,
			[]schedule.LineItem{line(schedule.LineItem{ID: "commission"}, map[int]float64{14: -100})}, ps),
		schedule.NewSection("net-revenue", "Net Revenue", schedule.KindNetRevenue, false,
			[]schedule.LineItem{line(schedule.LineItem{ID: "p1", ContainerID: "ph1"}, map[int]float64{14: 900})}, ps),
		schedule.NewSection("cost-land-acquisition", "Land Acquisition", schedule.KindCost, false, []schedule.LineItem{
			line(schedule.LineItem{ID: "a1", Category: "Land Acquisition", Description: "Land purchase", Stage: "acquisition"}, map[int]float64{1: -500}),
		}, ps),
		schedule.NewSection("cost-site-development", "Site Development", schedule.KindCost, false, []schedule.LineItem{
			line(schedule.LineItem{ID: "d1", Category: "Site Development", Description: "Grading", Stage: "development", ContainerID: "ph1", ContainerName: "Phase 1"},
				map[int]float64{2: -50, 3: -50, 4: -50, 5: -50}),
			line(schedule.LineItem{ID: "d2", Category: "Site Development", Description: "Paving", Stage: "development", ContainerID: "ph2", ContainerName: "Phase 2"},
				map[int]float64{6: -100}),
		}, ps),
		schedule.NewSection("cost-contingency", "Contingency", schedule.KindCost, false, []schedule.LineItem{
			line(schedule.LineItem{ID: "c1", Category: "Contingency", Stage: "contingency", ContainerID: "ph1", ContainerName: "Phase 1"}, map[int]float64{10: -30}),
		}, ps),
		schedule.NewSection("cost-marketing", "Marketing", schedule.KindCost, false, []schedule.LineItem{
			line(schedule.LineItem{ID: "m1", Category: "Marketing"}, map[int]float64{12: -20}),
		}, ps),
	}

	return &schedule.Schedule{
		RunID:       "run-1",
		TimeScale:   "monthly",
		GroupBy:     "none",
		Periods:     ps,
		Sections:    sections,
		NetCashFlow: schedule.NetCashFlow(sections, len(ps)),
	}
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

func TestByTime(t *testing.T) {
	tests := []struct {
		name    string
		scale   TimeScale
		periods int
		labels  []string
	}{
		{"Monthly", Monthly, 14, nil},
		{"Quarterly", Quarterly, 5, []string{"Q4 2025", "Q1 2026", "Q2 2026", "Q3 2026", "Q4 2026"}},
		{"Annual", Annual, 2, []string{"2025", "2026"}},
		{"Overall", Overall, 1, []string{"Total"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := testSchedule(t)
			result, err := ByTime(original, tt.scale)
			require.NoError(t, err)
			require.Len(t, result.Periods, tt.periods)
			assert.Equal(t, string(tt.scale), result.TimeScale)

			for i, label := range tt.labels {
				assert.Equal(t, label, result.Periods[i].Label)
			}

			seen := make(map[int]int)
			for _, p := range result.Periods {
				for _, idx := range p.SourceIndices {
					seen[idx]++
				}
			}
			if tt.scale != Monthly {
				assert.Len(t, seen, 14, "source periods partitioned")
				for idx, n := range seen {
					assert.Equal(t, 1, n, "source index %d", idx)
				}
			}

			for i, sec := range result.Sections {
				orig := original.Sections[i]
				assert.Equal(t, orig.ID, sec.ID)
				assert.InDelta(t, orig.Total, sec.Total, 1e-9)
				assert.InDelta(t, sum(orig.Subtotals), sum(sec.Subtotals), 1e-9, sec.ID)
				for j, li := range sec.LineItems {
					assert.InDelta(t, orig.LineItems[j].Total, li.Total, 1e-9)
				}
			}
			assert.InDelta(t, sum(original.NetCashFlow), sum(result.NetCashFlow), 1e-9)
		})
	}
}

func TestByTimeCalendarBoundaries(t *testing.T) {
	result, err := ByTime(testSchedule(t), Quarterly)
	require.NoError(t, err)

	first := result.Periods[0]
	assert.Equal(t, "2025-11-01", first.Start.String())
	assert.Equal(t, "2025-12-31", first.End.String())
	assert.Equal(t, []int{0, 1}, first.SourceIndices)

	// Grading posts in Dec 2025 (seq 2) and Jan-Mar 2026 (seq 3-5).
	site, ok := result.FindSection("cost-site-development")
	require.True(t, ok)
	grading := site.LineItems[0]
	assert.InDelta(t, -50, grading.AmountAt(1), 1e-9)
	assert.InDelta(t, -150, grading.AmountAt(2), 1e-9)
}

func TestByTimeIdempotent(t *testing.T) {
	annual, err := ByTime(testSchedule(t), Annual)
	require.NoError(t, err)
	again, err := ByTime(annual, Annual)
	require.NoError(t, err)

	require.Len(t, again.Periods, len(annual.Periods))
	for i, sec := range again.Sections {
		assert.Equal(t, annual.Sections[i].Subtotals, sec.Subtotals)
	}

	_, err = ByTime(annual, Monthly)
	assert.Error(t, err)
}

func TestByTimeDoesNotMutate(t *testing.T) {
	original := testSchedule(t)
	_, err := ByTime(original, Overall)
	require.NoError(t, err)
	assert.Len(t, original.Periods, 14)
	assert.Len(t, original.Sections[4].LineItems[0].Values, 4)
}

func TestRegroupPreservesTotals(t *testing.T) {
	for _, mode := range []GroupBy{GroupNone, GroupSummary, GroupStage, GroupCategory, GroupPhase} {
		t.Run(string(mode), func(t *testing.T) {
			original := testSchedule(t)
			result, err := Regroup(original, mode)
			require.NoError(t, err)
			assert.Equal(t, string(mode), result.GroupBy)

			assert.InDelta(t, original.GrandTotal(false), result.GrandTotal(false), 1e-9)
			assert.InDelta(t, original.GrandTotal(true), result.GrandTotal(true), 1e-9)
			assert.Equal(t, original.NetCashFlow, result.NetCashFlow)

			for i := 0; i < 3; i++ {
				assert.Equal(t, original.Sections[i], result.Sections[i], "revenue section %d kept first", i)
			}
			for _, sec := range result.Sections[3:] {
				assert.Equal(t, schedule.KindCost, sec.Kind)
			}
		})
	}
}

func TestRegroupSummary(t *testing.T) {
	result, err := Regroup(testSchedule(t), GroupSummary)
	require.NoError(t, err)
	require.Len(t, result.Sections, 4)

	summary := result.Sections[3]
	assert.Equal(t, "Cost Summary", summary.Name)
	ids := make([]string, len(summary.LineItems))
	for i, li := range summary.LineItems {
		ids[i] = li.ID
	}
	assert.Equal(t, []string{"acquisition", "development", "contingency", "other"}, ids)
	assert.InDelta(t, -300, summary.LineItems[1].Total, 1e-9)
	assert.Len(t, summary.LineItems[1].Children, 2)
	assert.Equal(t, "Development", summary.LineItems[1].Label)
}

func TestRegroupStage(t *testing.T) {
	result, err := Regroup(testSchedule(t), GroupStage)
	require.NoError(t, err)

	var names []string
	for _, sec := range result.Sections[3:] {
		names = append(names, sec.Name)
	}
	assert.Equal(t, []string{"Acquisition", "Development", "Contingency", "Other"}, names)
}

func TestRegroupCategory(t *testing.T) {
	result, err := Regroup(testSchedule(t), GroupCategory)
	require.NoError(t, err)

	var names []string
	for _, sec := range result.Sections[3:] {
		names = append(names, sec.Name)
	}
	assert.Equal(t, []string{"Contingency", "Grading", "Land purchase", "Marketing", "Paving"}, names)
}

func TestRegroupPhase(t *testing.T) {
	result, err := Regroup(testSchedule(t), GroupPhase)
	require.NoError(t, err)

	costs := result.Sections[3:]
	require.Len(t, costs, 3)
	assert.Equal(t, "Project-Level", costs[0].Name)
	assert.Equal(t, "Phase 1", costs[1].Name)
	assert.Equal(t, "Phase 2", costs[2].Name)

	project := costs[0]
	require.Len(t, project.LineItems, 2)
	assert.Equal(t, "acquisition", project.LineItems[0].Stage)
	assert.Equal(t, "other", project.LineItems[1].Stage)

	phase1 := costs[1]
	require.Len(t, phase1.LineItems, 2)
	assert.Equal(t, "Development", phase1.LineItems[0].Label)
	assert.Equal(t, "Contingency", phase1.LineItems[1].Label)
	require.Len(t, phase1.LineItems[0].Children, 1)
	assert.Equal(t, "d1", phase1.LineItems[0].Children[0].ID)
	assert.InDelta(t, -230, phase1.Total, 1e-9)
}

func TestRegroupPhaseKeysOnContainerID(t *testing.T) {
	s := testSchedule(t)
	marketing, ok := s.FindSection("cost-marketing")
	require.True(t, ok)
	marketing.LineItems = append(marketing.LineItems,
		line(schedule.LineItem{ID: "m2", Category: "Marketing", ContainerName: "Sales Office"}, map[int]float64{13: -5}))
	*marketing = schedule.NewSection(marketing.ID, marketing.Name, marketing.Kind, false, marketing.LineItems, s.Periods)

	site, ok := s.FindSection("cost-site-development")
	require.True(t, ok)
	site.LineItems = append(site.LineItems,
		line(schedule.LineItem{ID: "d3", Category: "Site Development", Stage: "development", ContainerID: "ph2", ContainerName: "Phase Two"}, map[int]float64{7: -10}))
	*site = schedule.NewSection(site.ID, site.Name, site.Kind, false, site.LineItems, s.Periods)

	result, err := Regroup(s, GroupPhase)
	require.NoError(t, err)

	costs := result.Sections[3:]
	require.Len(t, costs, 3)
	seen := make(map[string]bool)
	for _, sec := range costs {
		assert.False(t, seen[sec.ID], "duplicate section id %s", sec.ID)
		seen[sec.ID] = true
	}
	assert.Equal(t, "cost-phase-project", costs[0].ID)
	assert.Equal(t, "Project-Level", costs[0].Name)
	assert.InDelta(t, -525, costs[0].Total, 1e-9)
	assert.Equal(t, "Phase 2", costs[2].Name)
	assert.InDelta(t, -110, costs[2].Total, 1e-9)
}

func TestTransform(t *testing.T) {
	original := testSchedule(t)
	result, err := Transform(original, Annual, GroupPhase)
	require.NoError(t, err)
	assert.Equal(t, "annual", result.TimeScale)
	assert.Equal(t, "phase", result.GroupBy)
	assert.Len(t, result.Periods, 2)
	assert.InDelta(t, original.GrandTotal(false), result.GrandTotal(false), 1e-9)

	phase1 := result.Sections[4]
	dev := phase1.LineItems[0]
	assert.InDelta(t, -50, dev.AmountAt(1), 1e-9)
	assert.InDelta(t, -150, dev.AmountAt(2), 1e-9)
	assert.InDelta(t, -150, dev.Children[0].AmountAt(2), 1e-9)

	assert.Equal(t, "monthly", original.TimeScale)
	assert.Equal(t, "none", original.GroupBy)
}

func TestParse(t *testing.T) {
	scale, err := ParseTimeScale("Quarterly")
	require.NoError(t, err)
	assert.Equal(t, Quarterly, scale)
	scale, err = ParseTimeScale("")
	require.NoError(t, err)
	assert.Equal(t, Monthly, scale)
	_, err = ParseTimeScale("weekly")
	assert.Error(t, err)

	mode, err := ParseGroupBy(" phase ")
	require.NoError(t, err)
	assert.Equal(t, GroupPhase, mode)
	_, err = ParseGroupBy("county")
	assert.Error(t, err)
	_, err = Regroup(testSchedule(t), GroupBy("county"))
	assert.Error(t, err)
}
