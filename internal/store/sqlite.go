package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/iwvelando/land-cashflow/internal/engine"
	"go.uber.org/zap"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLite reads inputs from a SQLite database.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens the database at dsn, which may be a file path or
// ":memory:".
func OpenSQLite(ctx context.Context, logger *zap.Logger, dsn string) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Debug("opened sqlite source",
		zap.String("op", "store.OpenSQLite"),
		zap.String("dsn", dsn),
	)
	return &SQLite{db: db, logger: logger}, nil
}

// Migrate creates the input tables when they do not exist.
func (s *SQLite) Migrate(ctx context.Context) error {
	for _, stmt := range SchemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// DB returns the underlying connection pool.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// LoadInputs reads every input of projectID.
func (s *SQLite) LoadInputs(ctx context.Context, projectID string) (*engine.Inputs, error) {
	return loadInputs(ctx, s.logger, s.query, projectID)
}

func (s *SQLite) query(ctx context.Context, query string, args ...any) (rows, func(), error) {
	r, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	return r, func() {
		if err := r.Close(); err != nil {
			s.logger.Warn("failed to close rows",
				zap.String("op", "store.SQLite.query"),
				zap.Error(err),
			)
		}
	}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
