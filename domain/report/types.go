package report

import (
	"time"

	"omicpath/domain/core"
	"omicpath/domain/run"
	"omicpath/domain/unit"
)

// Row is one ranked unit
type Row struct {
	Rank             int                `json:"rank" db:"rank"`
	Unit             unit.ID            `json:"unit" db:"unit_id"`
	Pathway          string             `json:"pathway" db:"pathway"`
	Module           int                `json:"module,omitempty" db:"module"`
	PValue           float64            `json:"p_value" db:"p_value"`
	AdjustedPValue   float64            `json:"adjusted_p_value" db:"adjusted_p_value"`
	Covariates       []string           `json:"covariates"`
	CovariatePValues map[string]float64 `json:"covariate_p_values"`
	Omics            []string           `json:"omics"`
	DroppedOmics     []string           `json:"dropped_omics,omitempty"`
	// SuccessCount is nil when the unit was not resampled
	SuccessCount *int `json:"success_count,omitempty" db:"success_count"`
	Iterations   int  `json:"iterations,omitempty" db:"iterations"`
}

// Stability returns SuccessCount/Iterations, or 0 without resampling
func (r Row) Stability() float64 {
	if r.SuccessCount == nil || r.Iterations == 0 {
		return 0
	}
	return float64(*r.SuccessCount) / float64(r.Iterations)
}

// Report is the ranked table of one run, ascending by p-value. Units that
// were skipped or failed to fit are listed once in Failures and never ranked.
type Report struct {
	RunID     core.RunID     `json:"run_id"`
	Mode      string         `json:"mode"`
	Outcome   string         `json:"outcome"`
	Alpha     float64        `json:"alpha"`
	CreatedAt time.Time      `json:"created_at"`
	Rows      []Row          `json:"rows"`
	Failures  []unit.Failure `json:"failures"`
	Manifest  *run.Manifest  `json:"manifest,omitempty"`
}

// Lookup finds a unit's row
func (r *Report) Lookup(id unit.ID) (Row, bool) {
	for _, row := range r.Rows {
		if row.Unit == id {
			return row, true
		}
	}
	return Row{}, false
}

// FilterStable keeps rows whose success count is at least minSuccess.
// Rows without resampling data never pass. Ranks are preserved.
func (r *Report) FilterStable(minSuccess int) *Report {
	out := r.withRows([]Row{})
	for _, row := range r.Rows {
		if row.SuccessCount != nil && *row.SuccessCount >= minSuccess {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// Top returns the first n rows; n <= 0 or beyond the table returns all rows
func (r *Report) Top(n int) []Row {
	if n <= 0 || n >= len(r.Rows) {
		return append([]Row(nil), r.Rows...)
	}
	return append([]Row(nil), r.Rows[:n]...)
}

// Significant returns rows with p <= alpha
func (r *Report) Significant(alpha float64) []Row {
	var out []Row
	for _, row := range r.Rows {
		if row.PValue <= alpha {
			out = append(out, row)
		}
	}
	return out
}

func (r *Report) withRows(rows []Row) *Report {
	out := *r
	out.Rows = rows
	out.Failures = append([]unit.Failure(nil), r.Failures...)
	return &out
}
