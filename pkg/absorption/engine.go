package absorption

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/mathutil"
	"github.com/iwvelando/land-cashflow/pkg/resolve"
	"go.uber.org/zap"
)

// Engine prices parcels and resolves their sale economics.
type Engine struct {
	logger     *zap.Logger
	pricing    []PricingRecord
	benchmarks []Benchmark
}

// NewEngine creates an absorption engine over the given lookups.
// If logger is nil, it will use a no-op logger to prevent panics.
func NewEngine(logger *zap.Logger, pricing []PricingRecord, benchmarks []Benchmark) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:     logger,
		pricing:    append([]PricingRecord(nil), pricing...),
		benchmarks: append([]Benchmark(nil), benchmarks...),
	}
}

// Allocate computes the sale of every parcel. Parcels without a sale period,
// without a sellable measure, or with a sale period beyond maxPeriods are
// absent from the result. A missing pricing record is a warning unless
// terms.Strict is set, in which case it is returned as an error.
func (e *Engine) Allocate(parcels []Parcel, terms Terms, maxPeriods int) ([]ParcelSale, []string, error) {
	var warnings []string
	sales := make([]ParcelSale, 0, len(parcels))

	for _, parcel := range parcels {
		sale, saleWarnings, err := e.CalculateSale(parcel, terms)
		warnings = append(warnings, saleWarnings...)
		if err != nil {
			var pricingErr *PricingError
			if errors.As(err, &pricingErr) && !terms.Strict {
				e.logger.Warn(err.Error(),
					zap.String("op", "absorption.Allocate"),
					zap.String("parcel", parcel.ID),
				)
				warnings = append(warnings, err.Error()+"; excluded")
				continue
			}
			return nil, warnings, err
		}
		if sale == nil {
			continue
		}
		if sale.SalePeriod > maxPeriods {
			msg := fmt.Sprintf("parcel %s sells in period %d beyond horizon %d; excluded", parcel.ID, sale.SalePeriod, maxPeriods)
			e.logger.Warn(msg, zap.String("op", "absorption.Allocate"), zap.String("parcel", parcel.ID))
			warnings = append(warnings, msg)
			continue
		}
		sales = append(sales, *sale)
	}

	return sales, warnings, nil
}

// CalculateSale resolves one parcel's sale. A nil sale with a nil error means
// the parcel is simply not sold within the schedule.
func (e *Engine) CalculateSale(parcel Parcel, terms Terms) (*ParcelSale, []string, error) {
	if parcel.SalePeriod == nil {
		return nil, nil, nil
	}
	if *parcel.SalePeriod < 1 {
		msg := fmt.Sprintf("parcel %s has invalid sale period %d; excluded", parcel.ID, *parcel.SalePeriod)
		e.logger.Warn(msg, zap.String("op", "absorption.CalculateSale"), zap.String("parcel", parcel.ID))
		return nil, []string{msg}, nil
	}
	if positive(parcel.Units) == 0 && positive(parcel.Acres) == 0 {
		e.logger.Debug("parcel has no sellable units or acres",
			zap.String("op", "absorption.CalculateSale"),
			zap.String("parcel", parcel.ID),
		)
		return nil, nil, nil
	}

	if parcel.GrossPrice != nil && parcel.NetProceeds != nil {
		return e.precalculatedSale(parcel, terms), nil, nil
	}
	return e.unitPricedSale(parcel, terms)
}

func (e *Engine) precalculatedSale(parcel Parcel, terms Terms) *ParcelSale {
	salePeriod := *parcel.SalePeriod
	gross := *parcel.GrossPrice
	net := *parcel.NetProceeds
	deductions := Deductions{
		Other: resolve.Float(gross-net, parcel.TransactionCosts),
	}

	sale := newSale(parcel, salePeriod, BasisPrecalculated)
	sale.EscalationFactor = 1
	if terms.PriceGrowthRate != nil {
		sale.EscalationRate = *terms.PriceGrowthRate
		sale.EscalationFactor = mathutil.CompoundFactor(sale.EscalationRate, salePeriod-1)
		gross *= sale.EscalationFactor
		deductions = deductions.Scale(sale.EscalationFactor)
		net = gross - deductions.Total()
	}

	sale.GrossRevenue = gross
	sale.Deductions = deductions
	sale.NetRevenue = net
	return sale
}

func (e *Engine) unitPricedSale(parcel Parcel, terms Terms) (*ParcelSale, []string, error) {
	var warnings []string

	pricing, ok := e.lookupPricing(parcel)
	if !ok {
		return nil, nil, &PricingError{ParcelID: parcel.ID, LandUseType: parcel.LandUseType, ProductCode: parcel.ProductCode}
	}

	uom, known := ParseUnitOfMeasure(pricing.UnitOfMeasure)
	if !known {
		msg := fmt.Sprintf("pricing for %s has unknown unit of measure %q; using %s", parcel.LandUseType, pricing.UnitOfMeasure, uom)
		e.logger.Warn(msg, zap.String("op", "absorption.CalculateSale"), zap.String("parcel", parcel.ID))
		warnings = append(warnings, msg)
	}

	quantity, ok := Quantity(parcel, uom)
	if !ok {
		msg := fmt.Sprintf("parcel %s lacks the attribute required for %s pricing; no revenue", parcel.ID, uom)
		e.logger.Warn(msg, zap.String("op", "absorption.CalculateSale"), zap.String("parcel", parcel.ID))
		return nil, append(warnings, msg), nil
	}

	salePeriod := *parcel.SalePeriod
	sale := newSale(parcel, salePeriod, BasisUnitPricing)
	sale.UnitOfMeasure = uom
	sale.Quantity = quantity
	sale.PricePerUnit = pricing.PricePerUnit
	sale.EscalationRate = resolve.Float(0, terms.PriceGrowthRate, pricing.GrowthRate)
	sale.EscalationFactor = mathutil.CompoundFactor(sale.EscalationRate, salePeriod-1)
	sale.GrossRevenue = quantity * pricing.PricePerUnit * sale.EscalationFactor
	sale.Deductions = e.deductions(parcel, terms.ProjectID, sale.GrossRevenue)
	sale.NetRevenue = sale.GrossRevenue - sale.Deductions.Total()

	e.logger.Debug("parcel priced",
		zap.String("op", "absorption.CalculateSale"),
		zap.String("parcel", parcel.ID),
		zap.String("uom", string(uom)),
		zap.Float64("quantity", quantity),
		zap.Float64("gross", sale.GrossRevenue),
		zap.Float64("net", sale.NetRevenue),
	)
	return sale, warnings, nil
}

// Quantity returns the parcel quantity measured in uom. The second return
// is false when the attribute that unit requires is missing.
func Quantity(parcel Parcel, uom UnitOfMeasure) (float64, bool) {
	units := positive(parcel.Units)
	switch uom {
	case FrontFeet:
		width := positive(parcel.LotWidth)
		if width == 0 || units == 0 {
			return 0, false
		}
		return width * units, true
	case SquareFeet:
		area := positive(parcel.LotArea)
		if area == 0 {
			return 0, false
		}
		return area * math.Max(units, 1), true
	case Acre:
		acres := positive(parcel.Acres)
		if acres == 0 {
			return 0, false
		}
		return acres, true
	default:
		if units == 0 {
			return 0, false
		}
		return units, true
	}
}

// lookupPricing prefers an exact product match, then the land-use default.
func (e *Engine) lookupPricing(parcel Parcel) (PricingRecord, bool) {
	landUse := normalize(parcel.LandUseType)
	product := normalize(parcel.ProductCode)

	exact := func() (PricingRecord, bool) {
		if product == "" {
			return PricingRecord{}, false
		}
		for _, p := range e.pricing {
			if normalize(p.LandUseType) == landUse && normalize(p.ProductCode) == product {
				return p, true
			}
		}
		return PricingRecord{}, false
	}
	typeDefault := func() (PricingRecord, bool) {
		for _, p := range e.pricing {
			if normalize(p.LandUseType) == landUse && normalize(p.ProductCode) == "" {
				return p, true
			}
		}
		return PricingRecord{}, false
	}
	return resolve.First(exact, typeDefault)
}

// deductions resolves each benchmark rate independently through the
// product > project > global hierarchy.
func (e *Engine) deductions(parcel Parcel, projectID string, gross float64) Deductions {
	chain := e.benchmarkChain(parcel, projectID)
	field := func(get func(Benchmark) *float64) float64 {
		candidates := make([]*float64, 0, len(chain))
		for _, b := range chain {
			candidates = append(candidates, get(b))
		}
		return resolve.Float(0, candidates...)
	}

	count := positive(parcel.Units)
	if count == 0 {
		count = positive(parcel.Acres)
	}

	commission := gross * field(func(b Benchmark) *float64 { return b.CommissionRate })
	closingPct := gross * field(func(b Benchmark) *float64 { return b.ClosingCostRate })
	closingFixed := count * field(func(b Benchmark) *float64 { return b.ClosingCostPerUnit })
	improvement := count * field(func(b Benchmark) *float64 { return b.ImprovementCostPerUnit })

	return Deductions{
		Commission:      commission,
		ClosingCost:     math.Max(closingPct, closingFixed),
		ImprovementCost: improvement,
	}
}

// benchmarkChain returns the applicable benchmarks, most specific first. A
// benchmark naming a land use only applies to parcels of that land use, and
// within a scope it ranks ahead of benchmarks that name none.
func (e *Engine) benchmarkChain(parcel Parcel, projectID string) []Benchmark {
	landUse := normalize(parcel.LandUseType)
	product := normalize(parcel.ProductCode)

	var productScoped, projectScoped, globalUse, global []Benchmark
	for _, b := range e.benchmarks {
		sameProject := b.ProjectID == "" || b.ProjectID == projectID
		matchesUse := normalize(b.LandUseType) == "" || normalize(b.LandUseType) == landUse
		switch b.Scope {
		case ScopeProduct:
			if sameProject && product != "" && normalize(b.ProductCode) == product && matchesUse {
				productScoped = append(productScoped, b)
			}
		case ScopeProject:
			if b.ProjectID == projectID && matchesUse {
				projectScoped = append(projectScoped, b)
			}
		default:
			switch {
			case !matchesUse:
			case normalize(b.LandUseType) != "":
				globalUse = append(globalUse, b)
			default:
				global = append(global, b)
			}
		}
	}

	chain := make([]Benchmark, 0, len(productScoped)+len(projectScoped)+len(globalUse)+len(global))
	chain = append(chain, productScoped...)
	chain = append(chain, projectScoped...)
	chain = append(chain, globalUse...)
	return append(chain, global...)
}

func newSale(parcel Parcel, salePeriod int, basis Basis) *ParcelSale {
	return &ParcelSale{
		ParcelID:      parcel.ID,
		ParcelName:    parcel.Name,
		ContainerID:   parcel.ContainerID,
		ContainerName: parcel.ContainerName,
		LandUseType:   parcel.LandUseType,
		ProductCode:   parcel.ProductCode,
		SalePeriod:    salePeriod,
		Basis:         basis,
	}
}

func positive(v *float64) float64 {
	if v == nil || *v <= 0 || math.IsNaN(*v) {
		return 0
	}
	return *v
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
