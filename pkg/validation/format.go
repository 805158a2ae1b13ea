// Package validation provides common validation utilities.
package validation

import (
	"fmt"
	"slices"
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	if !slices.Contains(constants.OutputFormats, format) {
		return fmt.Errorf("expected output format of %s, got %s",
			strings.Join(constants.OutputFormats, ", "), format)
	}
	return nil
}

// ValidateTimeScale checks if the time scale is supported.
func ValidateTimeScale(scale string) error {
	switch scale {
	case constants.TimeScaleMonthly, constants.TimeScaleQuarterly, constants.TimeScaleAnnual, constants.TimeScaleOverall:
		return nil
	}
	return fmt.Errorf("expected time scale of %s, %s, %s or %s, got %s",
		constants.TimeScaleMonthly, constants.TimeScaleQuarterly, constants.TimeScaleAnnual, constants.TimeScaleOverall, scale)
}

// ValidateGroupBy checks if the grouping mode is supported.
func ValidateGroupBy(mode string) error {
	switch mode {
	case constants.GroupByNone, constants.GroupBySummary, constants.GroupByStage, constants.GroupByCategory, constants.GroupByPhase:
		return nil
	}
	return fmt.Errorf("expected grouping of %s, %s, %s, %s or %s, got %s",
		constants.GroupByNone, constants.GroupBySummary, constants.GroupByStage, constants.GroupByCategory, constants.GroupByPhase, mode)
}

// ValidateSourceDriver checks if the input source driver is supported.
func ValidateSourceDriver(driver string) error {
	switch driver {
	case constants.SourceConfig, constants.SourceSQLite, constants.SourcePostgres:
		return nil
	}
	return fmt.Errorf("expected source driver of %s, %s or %s, got %s",
		constants.SourceConfig, constants.SourceSQLite, constants.SourcePostgres, driver)
}
