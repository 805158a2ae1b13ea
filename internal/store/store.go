// Package store loads engine inputs from a relational store. SQLite and
// PostgreSQL share one table layout, created by Schema.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iwvelando/land-cashflow/internal/engine"
	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/costs"
	"github.com/iwvelando/land-cashflow/pkg/datetime"
	"go.uber.org/zap"
)

// ErrProjectNotFound is returned when the requested project has no row.
var ErrProjectNotFound = errors.New("project not found")

// Source supplies the inputs of one engine run. Everything is fetched up
// front so the engine itself never touches the store.
type Source interface {
	LoadInputs(ctx context.Context, projectID string) (*engine.Inputs, error)
	Close() error
}

// Schema creates the input tables. The DDL is accepted by both SQLite and
// PostgreSQL. Dates are stored as YYYY-MM-DD text so they are read back as
// calendar values.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	start_date TEXT,
	cost_inflation_rate DOUBLE PRECISION,
	price_growth_rate DOUBLE PRECISION,
	discount_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	min_periods INTEGER NOT NULL DEFAULT 0,
	max_periods INTEGER NOT NULL DEFAULT 0,
	strict_pricing BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS budget_items (
	id TEXT NOT NULL,
	project_id TEXT NOT NULL REFERENCES projects(id),
	category TEXT,
	subcategory TEXT,
	description TEXT,
	stage TEXT,
	container_id TEXT,
	container_name TEXT,
	quantity DOUBLE PRECISION NOT NULL DEFAULT 0,
	rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	amount DOUBLE PRECISION,
	start_period INTEGER NOT NULL DEFAULT 0,
	duration INTEGER NOT NULL DEFAULT 1,
	timing TEXT,
	curve_id TEXT,
	steepness DOUBLE PRECISION,
	escalation_rate DOUBLE PRECISION,
	sort_order INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, id)
);
CREATE TABLE IF NOT EXISTS parcels (
	id TEXT NOT NULL,
	project_id TEXT NOT NULL REFERENCES projects(id),
	name TEXT,
	container_id TEXT,
	container_name TEXT,
	land_use_type TEXT,
	product_code TEXT,
	units DOUBLE PRECISION,
	acres DOUBLE PRECISION,
	lot_width DOUBLE PRECISION,
	lot_area DOUBLE PRECISION,
	sale_period INTEGER,
	gross_price DOUBLE PRECISION,
	net_proceeds DOUBLE PRECISION,
	transaction_costs DOUBLE PRECISION,
	sort_order INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (project_id, id)
);
CREATE TABLE IF NOT EXISTS pricing (
	project_id TEXT NOT NULL REFERENCES projects(id),
	land_use_type TEXT NOT NULL,
	product_code TEXT NOT NULL DEFAULT '',
	price_per_unit DOUBLE PRECISION NOT NULL,
	unit_of_measure TEXT NOT NULL DEFAULT 'EA',
	growth_rate DOUBLE PRECISION,
	PRIMARY KEY (project_id, land_use_type, product_code)
);
CREATE TABLE IF NOT EXISTS sale_benchmarks (
	scope TEXT NOT NULL DEFAULT 'global',
	project_id TEXT,
	land_use_type TEXT,
	product_code TEXT,
	commission_rate DOUBLE PRECISION,
	closing_cost_rate DOUBLE PRECISION,
	closing_cost_per_unit DOUBLE PRECISION,
	improvement_cost_per_unit DOUBLE PRECISION
)`

// SchemaStatements splits Schema into individual statements.
func SchemaStatements() []string {
	var out []string
	for _, stmt := range strings.Split(Schema, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Open connects to the store selected by driver.
func Open(ctx context.Context, logger *zap.Logger, driver, dsn string) (Source, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no DSN configured for source driver %s", driver)
	}
	switch driver {
	case constants.SourceSQLite:
		s, err := OpenSQLite(ctx, logger, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case constants.SourcePostgres:
		p, err := OpenPostgres(ctx, logger, dsn)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported source driver %q", driver)
	}
}

// rows is the subset of *sql.Rows and pgx.Rows the loaders need.
type rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// queryFunc runs a query written with ? placeholders and returns the rows
// plus a function that releases them.
type queryFunc func(ctx context.Context, query string, args ...any) (rows, func(), error)

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const (
	projectQuery = `SELECT id, COALESCE(name, ''), COALESCE(start_date, ''), cost_inflation_rate,
	price_growth_rate, discount_rate, min_periods, max_periods, strict_pricing
	FROM projects WHERE id = ?`

	budgetQuery = `SELECT id, COALESCE(category, ''), COALESCE(subcategory, ''), COALESCE(description, ''),
	COALESCE(stage, ''), COALESCE(container_id, ''), COALESCE(container_name, ''), quantity, rate, amount,
	start_period, duration, COALESCE(timing, ''), COALESCE(curve_id, ''), steepness, escalation_rate
	FROM budget_items WHERE project_id = ? ORDER BY sort_order, id`

	parcelQuery = `SELECT id, COALESCE(name, ''), COALESCE(container_id, ''), COALESCE(container_name, ''),
	COALESCE(land_use_type, ''), COALESCE(product_code, ''), units, acres, lot_width, lot_area,
	sale_period, gross_price, net_proceeds, transaction_costs
	FROM parcels WHERE project_id = ? ORDER BY sort_order, id`

	pricingQuery = `SELECT land_use_type, product_code, price_per_unit, unit_of_measure, growth_rate
	FROM pricing WHERE project_id = ? ORDER BY land_use_type, product_code`

	benchmarkQuery = `SELECT scope, COALESCE(project_id, ''), COALESCE(land_use_type, ''), COALESCE(product_code, ''),
	commission_rate, closing_cost_rate, closing_cost_per_unit, improvement_cost_per_unit
	FROM sale_benchmarks WHERE project_id IS NULL OR project_id = '' OR project_id = ?
	ORDER BY scope, land_use_type, product_code`
)

// loadInputs reads one project and its collections. Each result set is
// released before the next query starts, so a single connection suffices.
// Rows with unreadable values are left out and reported in Inputs.Warnings.
func loadInputs(ctx context.Context, logger *zap.Logger, query queryFunc, projectID string) (*engine.Inputs, error) {
	project, err := loadProject(ctx, query, projectID)
	if err != nil {
		return nil, err
	}

	skipped := &anomalies{logger: logger, projectID: projectID}
	in := &engine.Inputs{Project: *project}
	if in.Budget, err = loadBudget(ctx, query, projectID, skipped); err != nil {
		return nil, fmt.Errorf("loading budget items: %w", err)
	}
	if in.Parcels, err = loadParcels(ctx, query, projectID, skipped); err != nil {
		return nil, fmt.Errorf("loading parcels: %w", err)
	}
	if in.Pricing, err = loadPricing(ctx, query, projectID, skipped); err != nil {
		return nil, fmt.Errorf("loading pricing: %w", err)
	}
	if in.Benchmarks, err = loadBenchmarks(ctx, query, projectID, skipped); err != nil {
		return nil, fmt.Errorf("loading sale benchmarks: %w", err)
	}
	in.Warnings = skipped.warnings

	logger.Debug("loaded project inputs",
		zap.String("op", "store.loadInputs"),
		zap.String("project", projectID),
		zap.Int("budgetItems", len(in.Budget)),
		zap.Int("parcels", len(in.Parcels)),
		zap.Int("pricing", len(in.Pricing)),
		zap.Int("benchmarks", len(in.Benchmarks)),
		zap.Int("excluded", len(in.Warnings)),
	)
	return in, nil
}

func loadProject(ctx context.Context, query queryFunc, projectID string) (*engine.Project, error) {
	r, release, err := query(ctx, projectQuery, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading project %s: %w", projectID, err)
	}
	defer release()

	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("loading project %s: %w", projectID, err)
		}
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	var p engine.Project
	var start string
	if err := r.Scan(&p.ID, &p.Name, &start, &p.CostInflationRate, &p.PriceGrowthRate,
		&p.DiscountRate, &p.MinPeriods, &p.MaxPeriods, &p.StrictPricing); err != nil {
		return nil, fmt.Errorf("scanning project %s: %w", projectID, err)
	}
	if start != "" {
		if p.StartDate, err = datetime.Parse(start); err != nil {
			return nil, fmt.Errorf("project %s start date: %w", projectID, err)
		}
	}
	return &p, nil
}

func loadBudget(ctx context.Context, query queryFunc, projectID string, skipped *anomalies) ([]costs.BudgetItem, error) {
	r, release, err := query(ctx, budgetQuery, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []costs.BudgetItem
	for r.Next() {
		var b costs.BudgetItem
		var quantity, rate, amount, start, duration, steepness, escalation any
		if err := r.Scan(&b.ID, &b.Category, &b.Subcategory, &b.Description, &b.Stage,
			&b.ContainerID, &b.ContainerName, &quantity, &rate, &amount,
			&start, &duration, &b.Timing, &b.CurveID, &steepness, &escalation); err != nil {
			return nil, err
		}

		var rv rowValues
		b.Quantity = rv.required("quantity", quantity)
		b.Rate = rv.required("rate", rate)
		b.Amount = rv.float("amount", amount)
		b.StartPeriod = rv.count("start_period", start)
		b.Duration = rv.count("duration", duration)
		b.Steepness = rv.float("steepness", steepness)
		b.EscalationRate = rv.float("escalation_rate", escalation)
		if rv.err != nil {
			skipped.exclude("store.loadBudget", "budget item", b.ID, rv.err)
			continue
		}
		out = append(out, b)
	}
	return out, r.Err()
}

func loadParcels(ctx context.Context, query queryFunc, projectID string, skipped *anomalies) ([]absorption.Parcel, error) {
	r, release, err := query(ctx, parcelQuery, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []absorption.Parcel
	for r.Next() {
		var p absorption.Parcel
		var units, acres, width, area, sale, gross, net, txn any
		if err := r.Scan(&p.ID, &p.Name, &p.ContainerID, &p.ContainerName, &p.LandUseType,
			&p.ProductCode, &units, &acres, &width, &area,
			&sale, &gross, &net, &txn); err != nil {
			return nil, err
		}

		var rv rowValues
		p.Units = rv.float("units", units)
		p.Acres = rv.float("acres", acres)
		p.LotWidth = rv.float("lot_width", width)
		p.LotArea = rv.float("lot_area", area)
		p.SalePeriod = rv.integer("sale_period", sale)
		p.GrossPrice = rv.float("gross_price", gross)
		p.NetProceeds = rv.float("net_proceeds", net)
		p.TransactionCosts = rv.float("transaction_costs", txn)
		if rv.err != nil {
			skipped.exclude("store.loadParcels", "parcel", p.ID, rv.err)
			continue
		}
		out = append(out, p)
	}
	return out, r.Err()
}

func loadPricing(ctx context.Context, query queryFunc, projectID string, skipped *anomalies) ([]absorption.PricingRecord, error) {
	r, release, err := query(ctx, pricingQuery, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []absorption.PricingRecord
	for r.Next() {
		var p absorption.PricingRecord
		var price, growth any
		if err := r.Scan(&p.LandUseType, &p.ProductCode, &price, &p.UnitOfMeasure, &growth); err != nil {
			return nil, err
		}

		var rv rowValues
		p.PricePerUnit = rv.required("price_per_unit", price)
		p.GrowthRate = rv.float("growth_rate", growth)
		if rv.err != nil {
			skipped.exclude("store.loadPricing", "pricing", pricingKey(p), rv.err)
			continue
		}
		out = append(out, p)
	}
	return out, r.Err()
}

func pricingKey(p absorption.PricingRecord) string {
	if p.ProductCode == "" {
		return p.LandUseType
	}
	return p.LandUseType + "/" + p.ProductCode
}

func loadBenchmarks(ctx context.Context, query queryFunc, projectID string, skipped *anomalies) ([]absorption.Benchmark, error) {
	r, release, err := query(ctx, benchmarkQuery, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	var out []absorption.Benchmark
	for r.Next() {
		var b absorption.Benchmark
		var scope string
		var commission, closingRate, closingUnit, improvement any
		if err := r.Scan(&scope, &b.ProjectID, &b.LandUseType, &b.ProductCode,
			&commission, &closingRate, &closingUnit, &improvement); err != nil {
			return nil, err
		}

		var rv rowValues
		b.CommissionRate = rv.float("commission_rate", commission)
		b.ClosingCostRate = rv.float("closing_cost_rate", closingRate)
		b.ClosingCostPerUnit = rv.float("closing_cost_per_unit", closingUnit)
		b.ImprovementCostPerUnit = rv.float("improvement_cost_per_unit", improvement)
		var ok bool
		if b.Scope, ok = absorption.ParseScope(scope); !ok {
			rv.fail("scope", fmt.Errorf("unknown scope %q", scope))
		}
		if rv.err != nil {
			skipped.exclude("store.loadBenchmarks", "benchmark", benchmarkKey(b), rv.err)
			continue
		}
		out = append(out, b)
	}
	return out, r.Err()
}

func benchmarkKey(b absorption.Benchmark) string {
	var parts []string
	for _, v := range []string{b.ProjectID, b.LandUseType, b.ProductCode} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "(all)"
	}
	return strings.Join(parts, "/")
}
