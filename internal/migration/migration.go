package migration

import (
	"context"

	"omicpath/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Tables lists the managed tables in dependency order
func Tables() []string {
	return []string{"analysis_runs", "report_rows", "unit_failures"}
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createAnalysisRunsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create analysis_runs table")
	}

	if err := r.createReportRowsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create report_rows table")
	}

	if err := r.createUnitFailuresTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create unit_failures table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// Reset drops the managed tables in reverse dependency order
func (r *MigrationRunner) Reset(ctx context.Context, db *sqlx.DB) error {
	tables := Tables()
	for i := len(tables) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tables[i]+" CASCADE"); err != nil {
			return errors.Wrapf(err, "failed to drop table %s", tables[i])
		}
	}
	return nil
}

func (r *MigrationRunner) createAnalysisRunsTable(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			run_id TEXT PRIMARY KEY,
			mode VARCHAR(32) NOT NULL,
			outcome VARCHAR(32) NOT NULL,
			alpha DOUBLE PRECISION NOT NULL,
			units INTEGER NOT NULL DEFAULT 0,
			failures INTEGER NOT NULL DEFAULT 0,
			significant INTEGER NOT NULL DEFAULT 0,
			payload JSONB NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)`

	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createReportRowsTable(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS report_rows (
			run_id TEXT NOT NULL REFERENCES analysis_runs(run_id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			unit_id TEXT NOT NULL,
			pathway TEXT NOT NULL,
			module INTEGER NOT NULL DEFAULT 0,
			p_value DOUBLE PRECISION NOT NULL,
			adjusted_p_value DOUBLE PRECISION NOT NULL,
			success_count INTEGER,
			iterations INTEGER NOT NULL DEFAULT 0,
			covariates TEXT[] NOT NULL DEFAULT '{}',
			omics TEXT[] NOT NULL DEFAULT '{}',
			covariate_p_values JSONB NOT NULL DEFAULT '{}',
			PRIMARY KEY (run_id, unit_id)
		)`

	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createUnitFailuresTable(ctx context.Context, db *sqlx.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS unit_failures (
			run_id TEXT NOT NULL REFERENCES analysis_runs(run_id) ON DELETE CASCADE,
			unit_id TEXT NOT NULL,
			status VARCHAR(32) NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (run_id, unit_id)
		)`

	_, err := db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_analysis_runs_created_at ON analysis_runs(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_report_rows_p_value ON report_rows(run_id, p_value)",
		"CREATE INDEX IF NOT EXISTS idx_report_rows_pathway ON report_rows(pathway)",
	}

	for _, indexQuery := range indexes {
		if _, err := db.ExecContext(ctx, indexQuery); err != nil {
			return err
		}
	}

	return nil
}
