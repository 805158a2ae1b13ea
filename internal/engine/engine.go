// Package engine runs a land-development cash-flow calculation: it builds
// the period axis, allocates budget costs and parcel sales over it, and
// assembles the schedule and its summary metrics.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/costs"
	"github.com/iwvelando/land-cashflow/pkg/metrics"
	"github.com/iwvelando/land-cashflow/pkg/periods"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine orchestrates a single cash-flow run.
type Engine struct {
	logger   *zap.Logger
	newRunID func() string
}

// New creates an engine. If logger is nil, a no-op logger is used.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, newRunID: uuid.NewString}
}

// Run calculates the monthly cash-flow schedule for the inputs.
func (e *Engine) Run(ctx context.Context, in Inputs) (*schedule.Schedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	started := time.Now()

	if len(in.Budget) == 0 && len(in.Parcels) == 0 {
		return nil, &InputError{Input: "budget and parcels", Err: ErrNoInputs}
	}
	if in.Project.StartDate.IsZero() {
		return nil, &InputError{Input: "project start date", Err: ErrNoPeriods}
	}

	horizon := in.HorizonPeriods()
	if horizon < 1 {
		return nil, &InputError{Input: "project horizon", Err: ErrNoPeriods}
	}
	ps, err := periods.GenerateCount(in.Project.StartDate, horizon)
	if err != nil {
		return nil, fmt.Errorf("generating periods: %w", err)
	}
	if len(ps) == 0 {
		return nil, &InputError{Input: "project horizon", Err: ErrNoPeriods}
	}

	var (
		allocations  []costs.Allocation
		sales        []absorption.ParcelSale
		costWarnings []string
		saleWarnings []string
	)

	// The cost and revenue passes read disjoint inputs and share nothing.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		allocator := costs.NewAllocator(e.logger)
		allocations, costWarnings = allocator.Allocate(in.Budget, costs.Terms{
			CostInflationRate: in.Project.CostInflationRate,
		}, len(ps))
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		absorber := absorption.NewEngine(e.logger, in.Pricing, in.Benchmarks)
		var err error
		sales, saleWarnings, err = absorber.Allocate(in.Parcels, absorption.Terms{
			ProjectID:       in.Project.ID,
			PriceGrowthRate: in.Project.PriceGrowthRate,
			Strict:          in.Project.StrictPricing,
		}, len(ps))
		if err != nil {
			return fmt.Errorf("allocating parcel sales: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sections := append(RevenueSections(sales, ps), CostSections(allocations, ps)...)
	net := schedule.NetCashFlow(sections, len(ps))

	result := &schedule.Schedule{
		RunID:       e.newRunID(),
		ProjectID:   in.Project.ID,
		ProjectName: in.Project.Name,
		TimeScale:   constants.TimeScaleMonthly,
		GroupBy:     constants.GroupByNone,
		Periods:     ps,
		Sections:    sections,
		NetCashFlow: net,
		Summary:     Summarize(sections, net, periods.Month, in.Project.DiscountRate),
		Warnings:    concatWarnings(in.Warnings, costWarnings, saleWarnings),
	}

	e.logger.Info("cash flow calculated",
		zap.String("op", "engine.Run"),
		zap.String("runId", result.RunID),
		zap.String("project", in.Project.ID),
		zap.Int("periods", len(ps)),
		zap.Int("allocations", len(allocations)),
		zap.Int("sales", len(sales)),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

func concatWarnings(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Summarize derives the summary totals and metrics of a set of sections.
func Summarize(sections []schedule.Section, net []float64, t periods.Type, discountRate float64) schedule.Summary {
	summary := schedule.Summary{
		CostsByBucket: make(map[schedule.CostBucket]float64, len(schedule.Buckets)),
	}
	for _, b := range schedule.Buckets {
		summary.CostsByBucket[b] = 0
	}

	for _, sec := range sections {
		switch sec.Kind {
		case schedule.KindGrossRevenue:
			summary.TotalGrossRevenue += sec.Total
		case schedule.KindDeductions:
			summary.TotalDeductions -= sec.Total
		case schedule.KindNetRevenue:
			summary.TotalNetRevenue += sec.Total
		default:
			summary.TotalCosts -= sec.Total
			collectBuckets(summary.CostsByBucket, sec.LineItems)
		}
	}

	summary.GrossProfit = summary.TotalNetRevenue - summary.TotalCosts
	if summary.TotalGrossRevenue != 0 {
		summary.GrossMargin = summary.GrossProfit / summary.TotalGrossRevenue
	}

	m := metrics.Calculate(net, t, discountRate)
	summary.IRR = m.IRR
	summary.AnnualIRR = m.AnnualIRR
	summary.IRRIterations = m.IRRIterations
	summary.DiscountRate = m.DiscountRate
	summary.NPV = m.NPV
	summary.EquityMultiple = m.Equity.Multiple
	summary.TotalInvestment = m.Equity.TotalInvestment
	summary.TotalProceeds = m.Equity.TotalProceeds
	summary.PeakEquity = m.Equity.PeakEquity
	summary.PaybackPeriod = m.Equity.PaybackPeriod
	summary.Cumulative = m.Equity.Cumulative
	return summary
}

func collectBuckets(acc map[schedule.CostBucket]float64, items []schedule.LineItem) {
	for _, li := range items {
		bucket := li.Bucket
		if bucket == "" {
			bucket = schedule.Classify(li.Category, li.Subcategory)
		}
		acc[bucket] -= li.Total
	}
}
