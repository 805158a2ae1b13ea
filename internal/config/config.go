// Package config defines the data structures related to configuration and
// includes functions for loading and validating the config.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/datetime"
	"github.com/iwvelando/land-cashflow/pkg/validation"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for land-cashflow.
type Configuration struct {
	Logging    LoggingConfig `yaml:"logging,omitempty"`
	Output     OutputConfig  `yaml:"output,omitempty"`
	Source     SourceConfig  `yaml:"source,omitempty"`
	Server     ServerConfig  `yaml:"server,omitempty"`
	Project    Project       `yaml:"project"`
	Budget     []BudgetItem  `yaml:"budget,omitempty"`
	Parcels    []Parcel      `yaml:"parcels,omitempty"`
	Pricing    []Pricing     `yaml:"pricing,omitempty"`
	Benchmarks []Benchmark   `yaml:"benchmarks,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format    string `yaml:"format,omitempty"`    // pretty, csv, json, yaml, msgpack, xlsx
	TimeScale string `yaml:"timeScale,omitempty"` // monthly, quarterly, annual, overall
	GroupBy   string `yaml:"groupBy,omitempty"`   // none, summary, stage, category, phase
	File      string `yaml:"file,omitempty"`      // optional output path, stdout when empty
}

// SourceConfig selects where project inputs are read from. With the config
// driver the inputs are the project, budget, parcels, pricing and benchmarks
// sections of this file.
type SourceConfig struct {
	Driver    string `yaml:"driver,omitempty"` // config, sqlite, postgres
	DSN       string `yaml:"dsn,omitempty"`
	ProjectID string `yaml:"projectId,omitempty"`
}

// ServerConfig holds the HTTP server settings used when no separate server
// config file is given.
type ServerConfig struct {
	Address       string `yaml:"address,omitempty"`
	MaxUploadSize string `yaml:"maxUploadSize,omitempty"`
}

// Project holds project-level settings.
type Project struct {
	ID                string   `yaml:"id,omitempty"`
	Name              string   `yaml:"name,omitempty"`
	StartDate         string   `yaml:"startDate"`
	CostInflationRate *float64 `yaml:"costInflationRate,omitempty"`
	PriceGrowthRate   *float64 `yaml:"priceGrowthRate,omitempty"`
	DiscountRate      float64  `yaml:"discountRate,omitempty"`
	MinPeriods        int      `yaml:"minPeriods,omitempty"`
	MaxPeriods        int      `yaml:"maxPeriods,omitempty"`
	StrictPricing     bool     `yaml:"strictPricing,omitempty"`
}

// BudgetItem is one budget row.
type BudgetItem struct {
	ID             string
	Category       string
	Subcategory    string
	Description    string
	Stage          string
	ContainerID    string
	ContainerName  string
	Quantity       float64
	Rate           float64
	Amount         *float64
	StartPeriod    int
	Duration       int
	Timing         string
	Curve          string
	Steepness      *float64
	EscalationRate *float64
}

// Parcel is one sellable parcel.
type Parcel struct {
	ID               string
	Name             string
	ContainerID      string
	ContainerName    string
	LandUseType      string
	ProductCode      string
	Units            *float64
	Acres            *float64
	LotWidth         *float64
	LotArea          *float64
	SalePeriod       *int
	GrossPrice       *float64
	NetProceeds      *float64
	TransactionCosts *float64
}

// Pricing is a price per unit of measure for a land use and optional product.
type Pricing struct {
	LandUseType   string
	ProductCode   string
	PricePerUnit  float64
	UnitOfMeasure string
	GrowthRate    *float64
}

// Benchmark holds sale deduction rates at global, project or product scope.
type Benchmark struct {
	Scope                  string
	ProjectID              string
	LandUseType            string
	ProductCode            string
	CommissionRate         *float64
	ClosingCostRate        *float64
	ClosingCostPerUnit     *float64
	ImprovementCostPerUnit *float64
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}
	return LoadConfigurationFromReader(bytes.NewReader(data))
}

// LoadConfigurationFromReader loads a YAML-formatted configuration from r.
// Each call uses its own viper instance so concurrent loads do not interfere.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %s", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	return &configuration, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("output.timeScale", constants.TimeScaleMonthly)
	v.SetDefault("output.groupBy", constants.GroupByNone)
	v.SetDefault("source.driver", constants.SourceConfig)
	// The DSN usually comes from the environment rather than the file.
	_ = v.BindEnv("source.dsn", constants.DSNEnvVar)
}

// ParsedStartDate parses the project start date. An empty value yields the
// zero date.
func (p Project) ParsedStartDate() (datetime.Date, error) {
	if p.StartDate == "" {
		return datetime.Date{}, nil
	}
	return datetime.Parse(p.StartDate)
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := validation.ValidateTimeScale(c.Output.TimeScale); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := validation.ValidateGroupBy(c.Output.GroupBy); err != nil {
		warnings = append(warnings, err.Error())
	}
	if err := validation.ValidateSourceDriver(c.Source.Driver); err != nil {
		warnings = append(warnings, err.Error())
	}
	if c.Source.Driver != constants.SourceConfig {
		if c.Source.DSN == "" {
			warnings = append(warnings, fmt.Sprintf("Source driver '%s' has no DSN", c.Source.Driver))
		}
		// Inputs come from the store; the file's input sections are ignored.
		return warnings
	}

	start, err := c.Project.ParsedStartDate()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Project start date is invalid: %v", err))
	}
	for i, b := range c.Benchmarks {
		if _, ok := absorption.ParseScope(b.Scope); !ok {
			warnings = append(warnings, fmt.Sprintf("Benchmark %d has unknown scope '%s'", i+1, b.Scope))
		}
	}

	validator := validation.InputValidator{
		StartDate:         start,
		CostInflationRate: c.Project.CostInflationRate,
		PriceGrowthRate:   c.Project.PriceGrowthRate,
		DiscountRate:      c.Project.DiscountRate,
		Budget:            c.BudgetItems(),
		Parcels:           c.ParcelRows(),
		Pricing:           c.PricingRecords(),
	}
	if err != nil {
		// Already reported above.
		validator.StartDate = datetime.New(1, 1, 1)
	}
	return append(warnings, validator.ValidateAll()...)
}
