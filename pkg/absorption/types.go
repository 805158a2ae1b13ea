// Package absorption computes per-parcel sale economics and slots the
// resulting revenue into each parcel's sale period.
package absorption

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPricing indicates a parcel has no pricing record for its land use.
var ErrNoPricing = errors.New("no pricing for parcel")

// PricingError identifies the parcel and land use that could not be priced.
type PricingError struct {
	ParcelID    string
	LandUseType string
	ProductCode string
}

func (e *PricingError) Error() string {
	if e.ProductCode != "" {
		return fmt.Sprintf("no pricing for parcel %s (land use %s, product %s)", e.ParcelID, e.LandUseType, e.ProductCode)
	}
	return fmt.Sprintf("no pricing for parcel %s (land use %s)", e.ParcelID, e.LandUseType)
}

// Unwrap lets errors.Is match ErrNoPricing.
func (e *PricingError) Unwrap() error {
	return ErrNoPricing
}

// Parcel is one parcel row as supplied by the caller.
type Parcel struct {
	ID            string
	Name          string
	ContainerID   string
	ContainerName string
	LandUseType   string
	ProductCode   string
	Units         *float64
	Acres         *float64
	// LotWidth is the frontage of one lot in feet.
	LotWidth *float64
	// LotArea is the area of one lot in square feet.
	LotArea    *float64
	SalePeriod *int
	// Precalculated proceeds, when already resolved upstream.
	GrossPrice       *float64
	NetProceeds      *float64
	TransactionCosts *float64
}

// UnitOfMeasure selects the parcel quantity that drives fallback pricing.
type UnitOfMeasure string

const (
	FrontFeet  UnitOfMeasure = "FF"
	SquareFeet UnitOfMeasure = "SF"
	Acre       UnitOfMeasure = "AC"
	Each       UnitOfMeasure = "EA"
)

// ParseUnitOfMeasure normalizes a stored UOM code.
func ParseUnitOfMeasure(value string) (UnitOfMeasure, bool) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "FF", "FRONT_FOOT", "FRONTFOOT":
		return FrontFeet, true
	case "SF", "SQFT", "SQUARE_FOOT":
		return SquareFeet, true
	case "AC", "ACRE", "ACRES":
		return Acre, true
	case "EA", "UNIT", "UNITS", "DU", "LOT", "":
		return Each, true
	default:
		return Each, false
	}
}

// PricingRecord is the price per unit of measure for a land use, optionally
// narrowed to one product.
type PricingRecord struct {
	LandUseType   string
	ProductCode   string
	PricePerUnit  float64
	UnitOfMeasure string
	GrowthRate    *float64
}

// BenchmarkScope is the level at which a sale benchmark applies.
type BenchmarkScope string

const (
	ScopeGlobal  BenchmarkScope = "global"
	ScopeProject BenchmarkScope = "project"
	ScopeProduct BenchmarkScope = "product"
)

// ParseScope normalizes a stored scope. An empty scope is global; an
// unrecognized one reports false.
func ParseScope(value string) (BenchmarkScope, bool) {
	switch scope := BenchmarkScope(strings.ToLower(strings.TrimSpace(value))); scope {
	case "":
		return ScopeGlobal, true
	case ScopeGlobal, ScopeProject, ScopeProduct:
		return scope, true
	default:
		return ScopeGlobal, false
	}
}

// Benchmark carries transaction-cost rates. Unset fields defer to the next
// scope in the product > project > global hierarchy.
type Benchmark struct {
	Scope                  BenchmarkScope
	ProjectID              string
	LandUseType            string
	ProductCode            string
	CommissionRate         *float64
	ClosingCostRate        *float64
	ClosingCostPerUnit     *float64
	ImprovementCostPerUnit *float64
}

// Deductions itemizes the transaction costs of a sale. All amounts are positive.
type Deductions struct {
	Commission      float64 `json:"commission"`
	ClosingCost     float64 `json:"closingCost"`
	ImprovementCost float64 `json:"improvementCost"`
	Other           float64 `json:"other"`
}

// Total returns the sum of all deductions.
func (d Deductions) Total() float64 {
	return d.Commission + d.ClosingCost + d.ImprovementCost + d.Other
}

// Scale returns the deductions multiplied by factor.
func (d Deductions) Scale(factor float64) Deductions {
	return Deductions{
		Commission:      d.Commission * factor,
		ClosingCost:     d.ClosingCost * factor,
		ImprovementCost: d.ImprovementCost * factor,
		Other:           d.Other * factor,
	}
}

// Basis records which computation produced a sale.
type Basis string

const (
	BasisPrecalculated Basis = "precalculated"
	BasisUnitPricing   Basis = "unit_pricing"
)

// ParcelSale is one parcel's resolved sale economics.
type ParcelSale struct {
	ParcelID         string
	ParcelName       string
	ContainerID      string
	ContainerName    string
	LandUseType      string
	ProductCode      string
	SalePeriod       int
	Basis            Basis
	UnitOfMeasure    UnitOfMeasure
	Quantity         float64
	PricePerUnit     float64
	EscalationRate   float64
	EscalationFactor float64
	GrossRevenue     float64
	Deductions       Deductions
	NetRevenue       float64
}

// Terms are the project-level inputs the absorption engine needs.
type Terms struct {
	ProjectID string
	// PriceGrowthRate is the DCF price-growth rate; it overrides pricing growth rates.
	PriceGrowthRate *float64
	// Strict makes a missing pricing record fatal instead of a warning.
	Strict bool
}
