// Package aggregation re-buckets a schedule into coarser time scales and
// regroups its cost sections. Every transform returns a new schedule and
// preserves line-item totals.
package aggregation

import (
	"fmt"
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/periods"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
)

// TimeScale is the output granularity of a schedule.
type TimeScale string

const (
	Monthly   TimeScale = constants.TimeScaleMonthly
	Quarterly TimeScale = constants.TimeScaleQuarterly
	Annual    TimeScale = constants.TimeScaleAnnual
	Overall   TimeScale = constants.TimeScaleOverall
)

// ParseTimeScale validates a time scale. Empty means monthly.
func ParseTimeScale(value string) (TimeScale, error) {
	switch TimeScale(strings.ToLower(strings.TrimSpace(value))) {
	case "", Monthly:
		return Monthly, nil
	case Quarterly:
		return Quarterly, nil
	case Annual:
		return Annual, nil
	case Overall:
		return Overall, nil
	default:
		return "", fmt.Errorf("unsupported time scale %q (expected one of: %s, %s, %s, %s)",
			value, Monthly, Quarterly, Annual, Overall)
	}
}

// PeriodType returns the period type produced by the scale.
func (ts TimeScale) PeriodType() periods.Type {
	switch ts {
	case Quarterly:
		return periods.Quarter
	case Annual:
		return periods.Year
	case Overall:
		return periods.Overall
	default:
		return periods.Month
	}
}

type groupKey struct {
	year    int
	quarter int
}

// ByTime re-buckets the schedule's periods by the calendar components of
// each period's start date: (year, quarter) for quarterly, year for annual,
// and a single bucket for overall. Values in each bucket are summed.
func ByTime(s *schedule.Schedule, scale TimeScale) (*schedule.Schedule, error) {
	out := s.Clone()
	if out == nil {
		return nil, fmt.Errorf("schedule is required")
	}

	target := scale.PeriodType()
	if len(out.Periods) == 0 {
		out.TimeScale = string(scale)
		return out, nil
	}
	source := out.Periods[0].Type
	if target != periods.Overall && (source.Months() == 0 || target.Months() < source.Months()) {
		return nil, fmt.Errorf("cannot aggregate %s periods into %s periods", source, target)
	}
	if target == source {
		out.TimeScale = string(scale)
		return out, nil
	}

	var (
		grouped []periods.Period
		keys    = make(map[groupKey]int)
		remap   = make(map[int]int, len(out.Periods))
	)
	for _, p := range out.Periods {
		key := keyFor(target, p)
		idx, ok := keys[key]
		if !ok {
			idx = len(grouped)
			keys[key] = idx
			grouped = append(grouped, periods.Period{
				Index:    idx,
				Sequence: idx + 1,
				Type:     target,
				Start:    p.Start,
				Label:    periods.Label(target, p.Start),
			})
		}
		g := &grouped[idx]
		g.End = p.End
		g.SourceIndices = append(g.SourceIndices, p.Index)
		remap[p.Sequence] = g.Sequence
	}

	for i := range out.Sections {
		sec := &out.Sections[i]
		items := make([]schedule.LineItem, len(sec.LineItems))
		for j, li := range sec.LineItems {
			items[j] = rebucket(li, remap)
		}
		*sec = schedule.NewSection(sec.ID, sec.Name, sec.Kind, sec.Memo, items, grouped)
	}

	out.Periods = grouped
	out.NetCashFlow = schedule.NetCashFlow(out.Sections, len(grouped))
	out.TimeScale = string(scale)
	return out, nil
}

func keyFor(target periods.Type, p periods.Period) groupKey {
	switch target {
	case periods.Quarter:
		return groupKey{year: p.Start.Year, quarter: p.Start.Quarter()}
	case periods.Year:
		return groupKey{year: p.Start.Year}
	case periods.Overall:
		return groupKey{}
	default:
		return groupKey{year: p.Start.Year, quarter: int(p.Start.Month)}
	}
}

func rebucket(li schedule.LineItem, remap map[int]int) schedule.LineItem {
	values := make([]schedule.PeriodValue, 0, len(li.Values))
	for _, v := range li.Values {
		if seq, ok := remap[v.PeriodSequence]; ok {
			v.PeriodSequence = seq
			values = append(values, v)
		}
	}
	out := schedule.NewLineItem(li, values)
	for i, child := range li.Children {
		out.Children[i] = rebucket(child, remap)
	}
	return out
}
