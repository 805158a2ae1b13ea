// Package periods builds the ordered time axis of a project and re-buckets
// an existing axis into coarser granularities.
package periods

import (
	"fmt"

	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/datetime"
)

// Type is the granularity of a period.
type Type string

const (
	Month   Type = constants.PeriodMonth
	Quarter Type = constants.PeriodQuarter
	Year    Type = constants.PeriodYear
	// Overall is a single period spanning a whole horizon. It only appears
	// in aggregated output.
	Overall Type = constants.TimeScaleOverall
)

// ParseType validates a period type string.
func ParseType(value string) (Type, error) {
	switch Type(value) {
	case Month, Quarter, Year:
		return Type(value), nil
	case "":
		return Month, nil
	default:
		return "", fmt.Errorf("unsupported period type %q", value)
	}
}

// Months returns the number of months spanned by one period of this type.
func (t Type) Months() int {
	switch t {
	case Quarter:
		return constants.MonthsPerQuarter
	case Year:
		return constants.MonthsPerYear
	case Overall:
		return 0
	default:
		return 1
	}
}

// PerYear returns the number of periods of this type in one year. An
// overall period counts as one.
func (t Type) PerYear() int {
	if t.Months() == 0 {
		return 1
	}
	return constants.MonthsPerYear / t.Months()
}

// Period is one discrete, inclusive time bucket.
type Period struct {
	Index    int           `json:"index" yaml:"index" msgpack:"index"`
	Sequence int           `json:"sequence" yaml:"sequence" msgpack:"sequence"`
	Type     Type          `json:"type" yaml:"type" msgpack:"type"`
	Start    datetime.Date `json:"start" yaml:"start" msgpack:"start"`
	End      datetime.Date `json:"end" yaml:"end" msgpack:"end"`
	Label    string        `json:"label" yaml:"label" msgpack:"label"`
	// SourceIndices lists the indices of the periods this one was aggregated from.
	SourceIndices []int `json:"sourceIndices,omitempty" yaml:"sourceIndices,omitempty" msgpack:"sourceIndices,omitempty"`
}

// Generate builds contiguous periods from start up to end. Each period ends
// on the last calendar day of its bucket and the next starts the following
// day. A trailing bucket that would run past end is dropped, not truncated.
func Generate(start, end datetime.Date, t Type) ([]Period, error) {
	if start.IsZero() {
		return nil, fmt.Errorf("start date is required")
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	if _, err := ParseType(string(t)); err != nil {
		return nil, err
	}

	step := t.Months()
	var result []Period
	cursor := start
	for {
		periodEnd := cursor.AddMonths(step - 1).EndOfMonth()
		if periodEnd.After(end) {
			break
		}
		idx := len(result)
		result = append(result, Period{
			Index:    idx,
			Sequence: idx + 1,
			Type:     t,
			Start:    cursor,
			End:      periodEnd,
			Label:    Label(t, cursor),
		})
		cursor = periodEnd.AddDays(1)
	}
	return result, nil
}

// GenerateCount builds exactly count monthly periods from start.
func GenerateCount(start datetime.Date, count int) ([]Period, error) {
	if count <= 0 {
		return nil, nil
	}
	return Generate(start, Horizon(start, count), Month)
}

// Horizon returns the last day covered by count monthly periods starting at start.
func Horizon(start datetime.Date, count int) datetime.Date {
	if count <= 0 {
		return start
	}
	return start.AddMonths(count - 1).EndOfMonth()
}

// Aggregate groups contiguous runs of source periods into periods of the
// target type: 3 source periods per quarter and 12 per year when the source
// is monthly, 4 per year when it is quarterly. A trailing partial group is
// still emitted as a short final period.
func Aggregate(source []Period, target Type) ([]Period, error) {
	if len(source) == 0 {
		return nil, nil
	}
	from := source[0].Type
	if from.Months() == 0 || target.Months() < from.Months() || target.Months()%from.Months() != 0 {
		return nil, fmt.Errorf("cannot aggregate %s periods into %s periods", from, target)
	}

	size := target.Months() / from.Months()
	result := make([]Period, 0, (len(source)+size-1)/size)
	for i := 0; i < len(source); i += size {
		j := min(i+size, len(source))
		first, last := source[i], source[j-1]

		indices := make([]int, 0, j-i)
		for k := i; k < j; k++ {
			indices = append(indices, source[k].Index)
		}

		idx := len(result)
		result = append(result, Period{
			Index:         idx,
			Sequence:      idx + 1,
			Type:          target,
			Start:         first.Start,
			End:           last.End,
			Label:         Label(target, first.Start),
			SourceIndices: indices,
		})
	}
	return result, nil
}

// Label returns the display label for a period of type t starting at start.
func Label(t Type, start datetime.Date) string {
	switch t {
	case Quarter:
		return fmt.Sprintf("Q%d %d", start.Quarter(), start.Year)
	case Year:
		return fmt.Sprintf("%d", start.Year)
	case Overall:
		return "Total"
	default:
		return fmt.Sprintf("%s %d", start.Month.String()[:3], start.Year)
	}
}

// Sequences returns the sequence numbers of the given periods.
func Sequences(ps []Period) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Sequence
	}
	return out
}
