package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"omicpath/domain/core"
	"omicpath/domain/report"
	"omicpath/domain/unit"
	"omicpath/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport(runID core.RunID) *report.Report {
	count := 97
	return &report.Report{
		RunID:     runID,
		Mode:      "module",
		Outcome:   "survival",
		Alpha:     0.05,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Rows: []report.Row{
			{
				Rank: 1, Unit: "P1#1", Pathway: "P1", Module: 1,
				PValue: 0.001, AdjustedPValue: 0.002,
				Covariates:       []string{"exprPC1", "mutCount"},
				CovariatePValues: map[string]float64{"exprPC1": 0.0004, "mutCount": 0.3},
				Omics:            []string{"expr", "mut"},
				SuccessCount:     &count, Iterations: 100,
			},
			{
				Rank: 2, Unit: "P2", Pathway: "P2",
				PValue: 0.2, AdjustedPValue: 0.2,
				Covariates: []string{"exprPC1"},
				Omics:      []string{"expr"},
			},
		},
		Failures: []unit.Failure{
			{Unit: "P3", Status: unit.StatusSkipped, Reason: "no genes"},
		},
	}
}

func TestToRowRecords(t *testing.T) {
	rep := sampleReport("run-1")

	records, err := toRowRecords(rep)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "P1#1", records[0].UnitID)
	assert.True(t, records[0].SuccessCount.Valid)
	assert.Equal(t, int64(97), records[0].SuccessCount.Int64)
	assert.JSONEq(t, `{"exprPC1":0.0004,"mutCount":0.3}`, records[0].CovariatePs)
	assert.Equal(t, []string{"exprPC1", "mutCount"}, []string(records[0].Covariates))

	assert.False(t, records[1].SuccessCount.Valid)
	assert.Equal(t, "null", records[1].CovariatePs)

	failures := toFailureRecords(rep)
	require.Len(t, failures, 1)
	assert.Equal(t, "skipped", failures[0].Status)
}

func openTestDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("OMICPATH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("OMICPATH_TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := migration.NewRunner()
	require.NoError(t, runner.Reset(context.Background(), db))
	require.NoError(t, runner.Run(context.Background(), db))
	return db
}

func TestReportRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewReportRepository(db)
	ctx := context.Background()

	rep := sampleReport(core.NewRunID())
	require.NoError(t, repo.SaveReport(ctx, rep))
	// replacing a run keeps one copy of its rows
	require.NoError(t, repo.SaveReport(ctx, rep))

	got, err := repo.GetReport(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, rep.Rows, got.Rows)
	assert.Equal(t, rep.Failures, got.Failures)

	var rows int
	require.NoError(t, db.GetContext(ctx, &rows, `SELECT COUNT(*) FROM report_rows WHERE run_id = $1`, rep.RunID.String()))
	assert.Equal(t, 2, rows)

	summaries, err := repo.ListReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2, summaries[0].Units)
	assert.Equal(t, 1, summaries[0].Significant)

	_, err = repo.GetReport(ctx, "missing")
	assert.True(t, core.IsNotFoundError(err))
}

func TestSaveReportRequiresRunID(t *testing.T) {
	repo := &ReportRepositoryImpl{}
	err := repo.SaveReport(context.Background(), &report.Report{})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}
