package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/iwvelando/land-cashflow/internal/engine"
	"github.com/iwvelando/land-cashflow/pkg/absorption"
	"github.com/iwvelando/land-cashflow/pkg/constants"
	"github.com/iwvelando/land-cashflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pgDSNEnvVar names a PostgreSQL database the tests may create tables in.
const pgDSNEnvVar = "LAND_CASHFLOW_TEST_PG_DSN"

type execFunc func(ctx context.Context, query string, args ...any) error

// seed writes in as rows using ? placeholders.
func seed(t *testing.T, exec execFunc, in engine.Inputs) {
	t.Helper()
	ctx := context.Background()
	p := in.Project

	var start any
	if !p.StartDate.IsZero() {
		start = p.StartDate.String()
	}
	require.NoError(t, exec(ctx, `INSERT INTO projects (id, name, start_date, cost_inflation_rate, price_growth_rate,
		discount_rate, min_periods, max_periods, strict_pricing) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, start, p.CostInflationRate, p.PriceGrowthRate, p.DiscountRate, p.MinPeriods, p.MaxPeriods, p.StrictPricing))

	for i, b := range in.Budget {
		require.NoError(t, exec(ctx, `INSERT INTO budget_items (id, project_id, category, subcategory, description, stage,
			container_id, container_name, quantity, rate, amount, start_period, duration, timing, curve_id, steepness,
			escalation_rate, sort_order) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, p.ID, b.Category, b.Subcategory, b.Description, b.Stage, b.ContainerID, b.ContainerName,
			b.Quantity, b.Rate, b.Amount, b.StartPeriod, b.Duration, b.Timing, b.CurveID, b.Steepness, b.EscalationRate, i))
	}

	for i, parcel := range in.Parcels {
		require.NoError(t, exec(ctx, `INSERT INTO parcels (id, project_id, name, container_id, container_name, land_use_type,
			product_code, units, acres, lot_width, lot_area, sale_period, gross_price, net_proceeds, transaction_costs,
			sort_order) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			parcel.ID, p.ID, parcel.Name, parcel.ContainerID, parcel.ContainerName, parcel.LandUseType, parcel.ProductCode,
			parcel.Units, parcel.Acres, parcel.LotWidth, parcel.LotArea, parcel.SalePeriod, parcel.GrossPrice,
			parcel.NetProceeds, parcel.TransactionCosts, i))
	}

	for _, pr := range in.Pricing {
		require.NoError(t, exec(ctx, `INSERT INTO pricing (project_id, land_use_type, product_code, price_per_unit,
			unit_of_measure, growth_rate) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, pr.LandUseType, pr.ProductCode, pr.PricePerUnit, pr.UnitOfMeasure, pr.GrowthRate))
	}

	for _, b := range in.Benchmarks {
		var projectID any
		if b.ProjectID != "" {
			projectID = b.ProjectID
		}
		require.NoError(t, exec(ctx, `INSERT INTO sale_benchmarks (scope, project_id, land_use_type, product_code,
			commission_rate, closing_cost_rate, closing_cost_per_unit, improvement_cost_per_unit)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(b.Scope), projectID, b.LandUseType, b.ProductCode, b.CommissionRate, b.ClosingCostRate,
			b.ClosingCostPerUnit, b.ImprovementCostPerUnit))
	}
}

// otherProject is a second project sharing the store; none of its rows may
// leak into the scenario's inputs.
func otherProject() engine.Inputs {
	in := testutil.ScenarioInputs()
	in.Project.ID = "cedar-flats"
	in.Project.Name = "Cedar Flats"
	in.Budget[0].ID = "clearing"
	in.Parcels[0].ID = "lots-z"
	in.Benchmarks = []absorption.Benchmark{{
		Scope:          absorption.ScopeProject,
		ProjectID:      "cedar-flats",
		CommissionRate: testutil.Float(0.05),
	}}
	return in
}

func newSQLite(t *testing.T) *SQLite {
	t.Helper()
	ctx := context.Background()
	s, err := OpenSQLite(ctx, nil, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(ctx))
	return s
}

func sqliteExec(s *SQLite) execFunc {
	return func(ctx context.Context, query string, args ...any) error {
		_, err := s.DB().ExecContext(ctx, query, args...)
		return err
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{"SELECT 1", "SELECT 1"},
		{"SELECT * FROM t WHERE id = ?", "SELECT * FROM t WHERE id = $1"},
		{"INSERT INTO t VALUES (?, ?, ?)", "INSERT INTO t VALUES ($1, $2, $3)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, rebind(tt.query))
	}
}

func TestSchemaStatements(t *testing.T) {
	stmts := SchemaStatements()
	require.Len(t, stmts, 5)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS projects")
	assert.Contains(t, stmts[4], "CREATE TABLE IF NOT EXISTS sale_benchmarks")
}

func TestSQLiteLoadInputs(t *testing.T) {
	s := newSQLite(t)
	seed(t, sqliteExec(s), testutil.ScenarioInputs())
	seed(t, sqliteExec(s), otherProject())

	in, err := s.LoadInputs(context.Background(), "meadow-ridge")
	require.NoError(t, err)
	assert.Equal(t, testutil.ScenarioInputs(), *in)
}

func TestSQLiteSkipsUnreadableRows(t *testing.T) {
	s := newSQLite(t)
	want := testutil.ScenarioInputs()
	seed(t, sqliteExec(s), want)

	db := s.DB()
	_, err := db.Exec(`INSERT INTO budget_items (id, project_id, amount, start_period, duration, sort_order)
		VALUES ('fencing', 'meadow-ridge', 'n/a', 2, 1, 9)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO parcels (id, project_id, land_use_type, units, sale_period, sort_order)
		VALUES ('lots-b', 'meadow-ridge', 'SFD', 4, 6.5, 9)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO sale_benchmarks (scope, land_use_type, commission_rate) VALUES ('regional', 'SFD', 0.02)`)
	require.NoError(t, err)

	in, err := s.LoadInputs(context.Background(), "meadow-ridge")
	require.NoError(t, err)
	assert.Equal(t, want.Budget, in.Budget)
	assert.Equal(t, want.Parcels, in.Parcels)
	assert.Equal(t, want.Benchmarks, in.Benchmarks)
	require.Len(t, in.Warnings, 3)
	assert.Contains(t, in.Warnings[0], "fencing")
	assert.Contains(t, in.Warnings[0], "amount")
	assert.Contains(t, in.Warnings[1], "sale_period")
	assert.Contains(t, in.Warnings[2], "regional")

	result, err := engine.New(nil).Run(context.Background(), *in)
	require.NoError(t, err)
	assert.Equal(t, in.Warnings, result.Warnings[:3])
}

func TestFloatValue(t *testing.T) {
	tests := []struct {
		value    any
		expected *float64
		wantErr  bool
	}{
		{nil, nil, false},
		{float64(1.5), testutil.Float(1.5), false},
		{int32(7), testutil.Float(7), false},
		{int64(-3), testutil.Float(-3), false},
		{" 2.25 ", testutil.Float(2.25), false},
		{[]byte("10"), testutil.Float(10), false},
		{"", nil, false},
		{"n/a", nil, true},
		{"NaN", nil, true},
		{true, nil, true},
	}

	for _, tt := range tests {
		got, err := floatValue(tt.value)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.value)
			continue
		}
		require.NoError(t, err, "%v", tt.value)
		assert.Equal(t, tt.expected, got, "%v", tt.value)
	}

	n, err := intValue(float64(12))
	require.NoError(t, err)
	assert.Equal(t, 12, *n)
	_, err = intValue(6.5)
	assert.Error(t, err)
}

func TestSQLiteLoadInputsRunsEngine(t *testing.T) {
	s := newSQLite(t)
	seed(t, sqliteExec(s), testutil.ScenarioInputs())

	in, err := s.LoadInputs(context.Background(), "meadow-ridge")
	require.NoError(t, err)

	got, err := engine.New(nil).Run(context.Background(), *in)
	require.NoError(t, err)
	want := testutil.RunScenario(t)

	assert.Equal(t, want.NetCashFlow, got.NetCashFlow)
	assert.InDelta(t, 375000, got.NetCashFlow[11], 0.01)
}

func TestSQLiteOptionalColumns(t *testing.T) {
	s := newSQLite(t)
	in := testutil.ScenarioInputs()
	in.Project.CostInflationRate = testutil.Float(0.03)
	in.Project.StrictPricing = true
	in.Project.MinPeriods = 24
	in.Budget[0].Steepness = testutil.Float(70)
	in.Budget[0].CurveID = "S"
	in.Budget[0].Timing = "curve"
	in.Parcels[0].SalePeriod = nil
	in.Parcels[0].LotWidth = testutil.Float(50)
	seed(t, sqliteExec(s), in)

	loaded, err := s.LoadInputs(context.Background(), "meadow-ridge")
	require.NoError(t, err)
	assert.Equal(t, in, *loaded)
	assert.Nil(t, loaded.Parcels[0].SalePeriod)
	assert.True(t, loaded.Project.StrictPricing)
}

func TestSQLiteProjectNotFound(t *testing.T) {
	s := newSQLite(t)
	_, err := s.LoadInputs(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProjectNotFound))
}

func TestSQLiteInvalidStartDate(t *testing.T) {
	s := newSQLite(t)
	_, err := s.DB().Exec(`INSERT INTO projects (id, start_date) VALUES ('bad', 'soon')`)
	require.NoError(t, err)

	_, err = s.LoadInputs(context.Background(), "bad")
	assert.ErrorContains(t, err, "start date")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	src, err := Open(ctx, nil, constants.SourceSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, src.Close())

	_, err = Open(ctx, nil, "mysql", "root@/land")
	assert.ErrorContains(t, err, "unsupported source driver")

	_, err = Open(ctx, nil, constants.SourcePostgres, "")
	assert.ErrorContains(t, err, "no DSN")
}

func TestPostgresLoadInputs(t *testing.T) {
	dsn := os.Getenv(pgDSNEnvVar)
	if dsn == "" {
		t.Skipf("%s not set", pgDSNEnvVar)
	}
	ctx := context.Background()

	p, err := OpenPostgres(ctx, nil, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	for _, table := range []string{"sale_benchmarks", "pricing", "parcels", "budget_items", "projects"} {
		_, err := p.Pool().Exec(ctx, "DROP TABLE IF EXISTS "+table)
		require.NoError(t, err)
	}
	require.NoError(t, p.Migrate(ctx))

	exec := func(ctx context.Context, query string, args ...any) error {
		_, err := p.Pool().Exec(ctx, rebind(query), args...)
		return err
	}
	seed(t, exec, testutil.ScenarioInputs())
	seed(t, exec, otherProject())

	in, err := p.LoadInputs(ctx, "meadow-ridge")
	require.NoError(t, err)
	assert.Equal(t, testutil.ScenarioInputs(), *in)

	_, err = p.LoadInputs(ctx, "missing")
	assert.True(t, errors.Is(err, ErrProjectNotFound))
}
