package aggregation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// GroupBy selects how cost line items are regrouped into sections.
type GroupBy string

const (
	GroupNone     GroupBy = constants.GroupByNone
	GroupSummary  GroupBy = constants.GroupBySummary
	GroupStage    GroupBy = constants.GroupByStage
	GroupCategory GroupBy = constants.GroupByCategory
	GroupPhase    GroupBy = constants.GroupByPhase
)

// ParseGroupBy validates a grouping mode. Empty means none.
func ParseGroupBy(value string) (GroupBy, error) {
	switch GroupBy(strings.ToLower(strings.TrimSpace(value))) {
	case "", GroupNone:
		return GroupNone, nil
	case GroupSummary:
		return GroupSummary, nil
	case GroupStage:
		return GroupStage, nil
	case GroupCategory:
		return GroupCategory, nil
	case GroupPhase:
		return GroupPhase, nil
	default:
		return "", fmt.Errorf("unsupported grouping %q (expected one of: %s, %s, %s, %s, %s)",
			value, GroupNone, GroupSummary, GroupStage, GroupCategory, GroupPhase)
	}
}

const projectLevel = "Project-Level"

// title builds a fresh caser per call; a Caser must not be shared between goroutines.
func title(s string) string {
	return cases.Title(language.English).String(s)
}

// Regroup rebuilds the cost sections of the schedule according to mode.
// Revenue sections are kept unchanged and placed first.
func Regroup(s *schedule.Schedule, mode GroupBy) (*schedule.Schedule, error) {
	out := s.Clone()
	if out == nil {
		return nil, fmt.Errorf("schedule is required")
	}

	var revenue []schedule.Section
	var costItems []schedule.LineItem
	var costSections []schedule.Section
	for _, sec := range out.Sections {
		if sec.Kind.IsRevenue() {
			revenue = append(revenue, sec)
			continue
		}
		costSections = append(costSections, sec)
		costItems = append(costItems, sec.LineItems...)
	}

	var regrouped []schedule.Section
	switch mode {
	case GroupNone, "":
		regrouped = costSections
	case GroupSummary:
		regrouped = bySummary(costItems, out)
	case GroupStage:
		regrouped = byStage(costItems, out)
	case GroupCategory:
		regrouped = byCategory(costItems, out)
	case GroupPhase:
		regrouped = byPhase(costItems, out)
	default:
		return nil, fmt.Errorf("unsupported grouping %q", mode)
	}

	out.Sections = append(revenue, regrouped...)
	out.NetCashFlow = schedule.NetCashFlow(out.Sections, len(out.Periods))
	if mode == "" {
		mode = GroupNone
	}
	out.GroupBy = string(mode)
	return out, nil
}

// Transform regroups and then re-buckets the schedule in time.
func Transform(s *schedule.Schedule, scale TimeScale, mode GroupBy) (*schedule.Schedule, error) {
	grouped, err := Regroup(s, mode)
	if err != nil {
		return nil, err
	}
	return ByTime(grouped, scale)
}

func bySummary(items []schedule.LineItem, s *schedule.Schedule) []schedule.Section {
	members := make(map[schedule.CostBucket][]schedule.LineItem)
	for _, li := range items {
		bucket := li.Bucket
		if bucket == "" {
			bucket = schedule.Classify(li.Category, li.Subcategory)
		}
		members[bucket] = append(members[bucket], li)
	}

	var lines []schedule.LineItem
	for _, bucket := range schedule.Buckets {
		group, ok := members[bucket]
		if !ok {
			continue
		}
		lines = append(lines, rollup(schedule.LineItem{
			ID:     string(bucket),
			Label:  title(string(bucket)),
			Bucket: bucket,
		}, group))
	}
	if len(lines) == 0 {
		return nil
	}
	return []schedule.Section{
		schedule.NewSection("cost-summary", "Cost Summary", schedule.KindCost, false, lines, s.Periods),
	}
}

func byStage(items []schedule.LineItem, s *schedule.Schedule) []schedule.Section {
	members := make(map[string][]schedule.LineItem)
	for _, li := range items {
		stage := schedule.NormalizeStage(li.Stage)
		members[stage] = append(members[stage], li)
	}

	var sections []schedule.Section
	for _, stage := range schedule.Stages {
		group, ok := members[stage]
		if !ok {
			continue
		}
		sections = append(sections, schedule.NewSection(
			"cost-stage-"+stage, title(stage), schedule.KindCost, false, group, s.Periods,
		))
	}
	return sections
}

func byCategory(items []schedule.LineItem, s *schedule.Schedule) []schedule.Section {
	members := make(map[string][]schedule.LineItem)
	for _, li := range items {
		key := strings.TrimSpace(li.Description)
		if key == "" {
			key = li.Category
		}
		members[key] = append(members[key], li)
	}

	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sections := make([]schedule.Section, 0, len(keys))
	for _, k := range keys {
		sections = append(sections, schedule.NewSection(
			"cost-category-"+schedule.Slug(k), k, schedule.KindCost, false, members[k], s.Periods,
		))
	}
	return sections
}

type phase struct {
	id   string
	name string
}

// byPhase emits project-level costs first, then one section per container
// in name order. Containers are keyed by id alone; the first non-empty name
// seen labels the section. Within a section each stage is a line whose
// children are the original line items.
func byPhase(items []schedule.LineItem, s *schedule.Schedule) []schedule.Section {
	members := make(map[string][]schedule.LineItem)
	names := make(map[string]string)
	for _, li := range items {
		id := strings.TrimSpace(li.ContainerID)
		if _, seen := members[id]; !seen || names[id] == "" {
			names[id] = li.ContainerName
		}
		members[id] = append(members[id], li)
	}

	keys := make([]phase, 0, len(members))
	for id := range members {
		k := phase{id: id, name: names[id]}
		if id == "" {
			k.name = projectLevel
		} else if k.name == "" {
			k.name = id
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if (a.id == "") != (b.id == "") {
			return a.id == ""
		}
		if a.name != b.name {
			return a.name < b.name
		}
		return a.id < b.id
	})

	sections := make([]schedule.Section, 0, len(keys))
	for _, k := range keys {
		id := "cost-phase-project"
		if k.id != "" {
			id = "cost-phase-" + schedule.Slug(k.id)
		}
		sections = append(sections, schedule.NewSection(
			id, k.name, schedule.KindCost, false, stageLines(k, members[k.id]), s.Periods,
		))
	}
	return sections
}

func stageLines(k phase, items []schedule.LineItem) []schedule.LineItem {
	members := make(map[string][]schedule.LineItem)
	for _, li := range items {
		stage := schedule.NormalizeStage(li.Stage)
		members[stage] = append(members[stage], li)
	}

	var lines []schedule.LineItem
	for _, stage := range schedule.Stages {
		group, ok := members[stage]
		if !ok {
			continue
		}
		lines = append(lines, rollup(schedule.LineItem{
			ID:            schedule.Slug(k.id + " " + stage),
			Label:         title(stage),
			Stage:         stage,
			ContainerID:   k.id,
			ContainerName: k.name,
		}, group))
	}
	return lines
}

// rollup merges the values of items into parent and keeps them as children.
func rollup(parent schedule.LineItem, items []schedule.LineItem) schedule.LineItem {
	var values []schedule.PeriodValue
	for _, li := range items {
		values = append(values, li.Values...)
	}
	parent.Children = items
	return schedule.NewLineItem(parent, values)
}
