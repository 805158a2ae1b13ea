package store

import (
	"context"
	"fmt"

	"github.com/iwvelando/land-cashflow/internal/engine"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres reads inputs from a PostgreSQL database through a pgx pool.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects a pool to the database at dsn.
func OpenPostgres(ctx context.Context, logger *zap.Logger, dsn string) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Debug("opened postgres source",
		zap.String("op", "store.OpenPostgres"),
		zap.String("host", config.ConnConfig.Host),
		zap.String("database", config.ConnConfig.Database),
	)
	return &Postgres{pool: pool, logger: logger}, nil
}

// Migrate creates the input tables when they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range SchemaStatements() {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Pool returns the underlying connection pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// LoadInputs reads every input of projectID.
func (p *Postgres) LoadInputs(ctx context.Context, projectID string) (*engine.Inputs, error) {
	return loadInputs(ctx, p.logger, p.query, projectID)
}

func (p *Postgres) query(ctx context.Context, query string, args ...any) (rows, func(), error) {
	r, err := p.pool.Query(ctx, rebind(query), args...)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

// Close releases every pooled connection.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
