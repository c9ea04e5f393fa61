package ports

import (
	"context"

	"omicpath/domain/core"
	"omicpath/domain/report"
)

// ReportSummary is the listing view of a stored report
type ReportSummary struct {
	RunID       core.RunID `json:"run_id" db:"run_id"`
	Mode        string     `json:"mode" db:"mode"`
	Outcome     string     `json:"outcome" db:"outcome"`
	Units       int        `json:"units" db:"units"`
	Failures    int        `json:"failures" db:"failures"`
	Significant int        `json:"significant" db:"significant"`
}

// ReportRepository persists ranked reports by run
type ReportRepository interface {
	// SaveReport stores or replaces the report of a run
	SaveReport(ctx context.Context, r *report.Report) error

	// GetReport returns core.ErrNotFound for unknown runs
	GetReport(ctx context.Context, runID core.RunID) (*report.Report, error)

	// ListReports returns the most recent reports first
	ListReports(ctx context.Context, limit int) ([]ReportSummary, error)
}
