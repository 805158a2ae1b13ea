// Package constants provides shared constants for the land-cashflow application.
package constants

import "time"

// DateLayout is the calendar date format expected in config files and stores.
const DateLayout = "2006-01-02"

// MonthLayout is accepted wherever a date is expected and resolves to the
// first day of the month.
const MonthLayout = "2006-01"

// Calendar constants
const (
	// MonthsPerYear is the number of months in a year
	MonthsPerYear = 12

	// MonthsPerQuarter is the number of months in a quarter
	MonthsPerQuarter = 3

	// QuartersPerYear is the number of quarters in a year
	QuartersPerYear = 4
)

// Period types
const (
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

// Financial constants
const (
	// DecimalPlaces is the precision for currency rounding (2 decimal places)
	DecimalPlaces = 2

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01

	// PercentageMultiplier is used for percentage conversions
	PercentageMultiplier = 100.0

	// DefaultSteepness leaves a curve profile unmodified
	DefaultSteepness = 50.0

	// SquareFeetPerAcre converts acres to square feet
	SquareFeetPerAcre = 43560.0
)

// IRR solver tuning
const (
	// IRRMaxIterations bounds each Newton-Raphson attempt
	IRRMaxIterations = 100

	// IRRTolerance is the rate delta below which an attempt has converged
	IRRTolerance = 1e-7

	// IRRMinDerivative aborts an attempt when the NPV slope underflows
	IRRMinDerivative = 1e-10

	// IRRMinRate and IRRMaxRate bound the periodic rate search
	IRRMinRate = -0.99
	IRRMaxRate = 10.0

	// IRRGuessFloor and IRRGuessCeiling clamp the initial guess
	IRRGuessFloor   = -0.5
	IRRGuessCeiling = 0.5
)

// IRRFallbackSeeds are tried in order when the primary guess fails to converge.
var IRRFallbackSeeds = []float64{0.001, 0.01, 0.05, -0.01, 0.1}

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"

	// OutputFormatYAML is the YAML output format
	OutputFormatYAML = "yaml"

	// OutputFormatMsgpack is the binary msgpack output format
	OutputFormatMsgpack = "msgpack"

	// OutputFormatXLSX is the Excel workbook output format
	OutputFormatXLSX = "xlsx"
)

// OutputFormats lists every supported output format.
var OutputFormats = []string{
	OutputFormatPretty,
	OutputFormatCSV,
	OutputFormatJSON,
	OutputFormatYAML,
	OutputFormatMsgpack,
	OutputFormatXLSX,
}

// Time scales for schedule aggregation
const (
	TimeScaleMonthly   = "monthly"
	TimeScaleQuarterly = "quarterly"
	TimeScaleAnnual    = "annual"
	TimeScaleOverall   = "overall"
)

// Grouping modes for schedule regrouping
const (
	GroupByNone     = "none"
	GroupBySummary  = "summary"
	GroupByStage    = "stage"
	GroupByCategory = "category"
	GroupByPhase    = "phase"
)

// Input source drivers
const (
	SourceConfig   = "config"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// HTTP server timeouts
const (
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// DSNEnvVar names the environment variable consulted for a store DSN
	DSNEnvVar = "LAND_CASHFLOW_DSN"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address for the API
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for project configs (1 MB)
	DefaultMaxUploadSizeBytes int64 = 1024 * 1024
)
