package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"omicpath/domain/core"
	"omicpath/domain/report"
	"omicpath/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ReportRepositoryImpl implements ReportRepository for PostgreSQL
type ReportRepositoryImpl struct {
	db *sqlx.DB
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(db *sqlx.DB) ports.ReportRepository {
	return &ReportRepositoryImpl{db: db}
}

// rowRecord is the flattened report_rows layout
type rowRecord struct {
	RunID          string         `db:"run_id"`
	Rank           int            `db:"rank"`
	UnitID         string         `db:"unit_id"`
	Pathway        string         `db:"pathway"`
	Module         int            `db:"module"`
	PValue         float64        `db:"p_value"`
	AdjustedPValue float64        `db:"adjusted_p_value"`
	SuccessCount   sql.NullInt64  `db:"success_count"`
	Iterations     int            `db:"iterations"`
	Covariates     pq.StringArray `db:"covariates"`
	Omics          pq.StringArray `db:"omics"`
	CovariatePs    string         `db:"covariate_p_values"`
}

// failureRecord is the unit_failures layout
type failureRecord struct {
	RunID  string `db:"run_id"`
	UnitID string `db:"unit_id"`
	Status string `db:"status"`
	Reason string `db:"reason"`
}

func toRowRecords(r *report.Report) ([]rowRecord, error) {
	records := make([]rowRecord, 0, len(r.Rows))
	for _, row := range r.Rows {
		ps, err := json.Marshal(row.CovariatePValues)
		if err != nil {
			return nil, err
		}
		rec := rowRecord{
			RunID:          r.RunID.String(),
			Rank:           row.Rank,
			UnitID:         string(row.Unit),
			Pathway:        row.Pathway,
			Module:         row.Module,
			PValue:         row.PValue,
			AdjustedPValue: row.AdjustedPValue,
			Iterations:     row.Iterations,
			Covariates:     pq.StringArray(row.Covariates),
			Omics:          pq.StringArray(row.Omics),
			CovariatePs:    string(ps),
		}
		if row.SuccessCount != nil {
			rec.SuccessCount = sql.NullInt64{Int64: int64(*row.SuccessCount), Valid: true}
		}
		records = append(records, rec)
	}
	return records, nil
}

func toFailureRecords(r *report.Report) []failureRecord {
	records := make([]failureRecord, 0, len(r.Failures))
	for _, f := range r.Failures {
		records = append(records, failureRecord{
			RunID:  r.RunID.String(),
			UnitID: string(f.Unit),
			Status: string(f.Status),
			Reason: f.Reason,
		})
	}
	return records
}

// SaveReport stores the report payload and its queryable rows in one transaction
func (r *ReportRepositoryImpl) SaveReport(ctx context.Context, rep *report.Report) error {
	if rep == nil || rep.RunID == "" {
		return core.NewInvalidInputError("report", "run id is required")
	}

	payload, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	rows, err := toRowRecords(rep)
	if err != nil {
		return err
	}
	failures := toFailureRecords(rep)

	createdAt := rep.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (run_id, mode, outcome, alpha, units, failures, significant, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			outcome = EXCLUDED.outcome,
			alpha = EXCLUDED.alpha,
			units = EXCLUDED.units,
			failures = EXCLUDED.failures,
			significant = EXCLUDED.significant,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at
	`, rep.RunID.String(), rep.Mode, rep.Outcome, rep.Alpha,
		len(rep.Rows), len(rep.Failures), len(rep.Significant(rep.Alpha)), string(payload), createdAt)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM report_rows WHERE run_id = $1`, rep.RunID.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM unit_failures WHERE run_id = $1`, rep.RunID.String()); err != nil {
		return err
	}

	if len(rows) > 0 {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO report_rows (run_id, rank, unit_id, pathway, module, p_value, adjusted_p_value,
				success_count, iterations, covariates, omics, covariate_p_values)
			VALUES (:run_id, :rank, :unit_id, :pathway, :module, :p_value, :adjusted_p_value,
				:success_count, :iterations, :covariates, :omics, :covariate_p_values)
		`, rows)
		if err != nil {
			return err
		}
	}
	if len(failures) > 0 {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO unit_failures (run_id, unit_id, status, reason)
			VALUES (:run_id, :unit_id, :status, :reason)
		`, failures)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetReport loads a report by run
func (r *ReportRepositoryImpl) GetReport(ctx context.Context, runID core.RunID) (*report.Report, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload, `
		SELECT payload FROM analysis_runs WHERE run_id = $1
	`, runID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("report", runID.String())
	}
	if err != nil {
		return nil, err
	}

	var rep report.Report
	if err := json.Unmarshal(payload, &rep); err != nil {
		return nil, err
	}
	return &rep, nil
}

// ListReports returns summaries, newest first
func (r *ReportRepositoryImpl) ListReports(ctx context.Context, limit int) ([]ports.ReportSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	var summaries []ports.ReportSummary
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT run_id, mode, outcome, units, failures, significant
		FROM analysis_runs
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return summaries, nil
}
