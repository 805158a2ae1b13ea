package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Numeric columns are scanned into any so a single malformed value costs one
// row rather than the whole load. SQLite keeps text that does not look like a
// number in a REAL column, and pgx hands back int32 for INTEGER.

// floatValue converts a scanned column value. NULL and blank text yield nil.
func floatValue(v any) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int64:
		f = float64(x)
	case int32:
		f = float64(x)
	case int:
		f = float64(x)
	case string:
		return parseFloat(x)
	case []byte:
		return parseFloat(string(x))
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%v is not a finite number", f)
	}
	return &f, nil
}

func parseFloat(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%q is not a number", s)
	}
	return &f, nil
}

// intValue converts a scanned column value that must hold a whole number.
func intValue(v any) (*int, error) {
	f, err := floatValue(v)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		return nil, fmt.Errorf("%v is not a whole number", *f)
	}
	n := int(*f)
	return &n, nil
}

// rowValues converts the loosely typed columns of one row and keeps the
// first failure.
type rowValues struct {
	err error
}

func (rv *rowValues) fail(column string, err error) {
	if rv.err == nil {
		rv.err = fmt.Errorf("%s: %w", column, err)
	}
}

func (rv *rowValues) float(column string, v any) *float64 {
	f, err := floatValue(v)
	if err != nil {
		rv.fail(column, err)
	}
	return f
}

// required is float for a column the schema declares NOT NULL.
func (rv *rowValues) required(column string, v any) float64 {
	f := rv.float(column, v)
	if f == nil {
		if rv.err == nil {
			rv.fail(column, fmt.Errorf("value is missing"))
		}
		return 0
	}
	return *f
}

func (rv *rowValues) integer(column string, v any) *int {
	n, err := intValue(v)
	if err != nil {
		rv.fail(column, err)
	}
	return n
}

func (rv *rowValues) count(column string, v any) int {
	if n := rv.integer(column, v); n != nil {
		return *n
	}
	return 0
}

// anomalies collects the rows a load excluded.
type anomalies struct {
	logger    *zap.Logger
	projectID string
	warnings  []string
}

func (a *anomalies) exclude(op, kind, id string, err error) {
	a.logger.Warn("excluding unreadable row",
		zap.String("op", op),
		zap.String("project", a.projectID),
		zap.String("kind", kind),
		zap.String("id", id),
		zap.Error(err),
	)
	a.warnings = append(a.warnings, fmt.Sprintf("%s %s excluded: %v", kind, id, err))
}
