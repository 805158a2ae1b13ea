// Package datetime provides a calendar date type and date utility functions.
//
// Dates are plain year/month/day values. They never pass through a
// time.Time with a location, so bucketing a date into a month, quarter or
// year cannot shift because of a timezone conversion.
package datetime

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/land-cashflow/pkg/constants"
)

// Date is a calendar date without a time of day or a timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns the date for the given components. Out-of-range days are
// clamped to the month length.
func New(year int, month time.Month, day int) Date {
	if day < 1 {
		day = 1
	}
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return Date{Year: year, Month: month, Day: day}
}

// Parse reads a YYYY-MM-DD or YYYY-MM string. The components are taken
// directly from the string.
func Parse(value string) (Date, error) {
	trimmed := strings.TrimSpace(value)
	// Stored values sometimes carry a time suffix; only the calendar part counts.
	if idx := strings.IndexAny(trimmed, "T "); idx > 0 {
		trimmed = trimmed[:idx]
	}

	parts := strings.Split(trimmed, "-")
	if len(parts) != 2 && len(parts) != 3 {
		return Date{}, fmt.Errorf("invalid date %q: expected %s or %s", value, constants.DateLayout, constants.MonthLayout)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil || len(parts[0]) != 4 {
		return Date{}, fmt.Errorf("invalid year in date %q", value)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Date{}, fmt.Errorf("invalid month in date %q", value)
	}
	day := 1
	if len(parts) == 3 {
		day, err = strconv.Atoi(parts[2])
		if err != nil || day < 1 || day > DaysIn(year, time.Month(month)) {
			return Date{}, fmt.Errorf("invalid day in date %q", value)
		}
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, nil
}

// MustParse parses a date string and panics on error.
// This is intended for use in tests where the date string is known to be valid.
func MustParse(value string) Date {
	d, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return d
}

// FromTime extracts the calendar components of t as observed in t's own location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Quarter returns the calendar quarter (1-4) containing the date.
func (d Date) Quarter() int {
	return (int(d.Month)-1)/constants.MonthsPerQuarter + 1
}

// AddMonths shifts the date by n months, clamping the day to the target
// month length (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(n int) Date {
	total := d.Year*constants.MonthsPerYear + int(d.Month) - 1 + n
	year := floorDiv(total, constants.MonthsPerYear)
	month := time.Month(total-year*constants.MonthsPerYear) + 1
	return New(year, month, d.Day)
}

// AddDays shifts the date by n days.
func (d Date) AddDays(n int) Date {
	// UTC noon keeps the arithmetic away from any day boundary.
	t := time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	return FromTime(t)
}

// EndOfMonth returns the last calendar day of the date's month.
func (d Date) EndOfMonth() Date {
	return Date{Year: d.Year, Month: d.Month, Day: DaysIn(d.Year, d.Month)}
}

// Compare returns -1, 0 or 1 when d is before, equal to or after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

// MonthsBetween returns the number of whole calendar months from a to b,
// ignoring the day component.
func MonthsBetween(a, b Date) int {
	return (b.Year-a.Year)*constants.MonthsPerYear + int(b.Month) - int(a.Month)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	switch month {
	case time.April, time.June, time.September, time.November:
		return 30
	case time.February:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	default:
		return 31
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	default:
		return 0
	}
}
