package analysis

import (
	"math"
	"sort"
	"time"

	"omicpath/domain/core"
	"omicpath/domain/report"
	"omicpath/domain/unit"
)

// ReportMeta labels a built report
type ReportMeta struct {
	RunID   core.RunID
	Mode    string
	Outcome string
	Alpha   float64
}

// BuildReport merges batch p-values with resampling counts into a table
// sorted ascending by p-value. Ties keep batch order. resampling may be nil.
func BuildReport(batch *unit.BatchResult, resampling *unit.ResamplingResult, meta ReportMeta) *report.Report {
	out := &report.Report{
		RunID:     meta.RunID,
		Mode:      meta.Mode,
		Outcome:   meta.Outcome,
		Alpha:     meta.Alpha,
		CreatedAt: time.Now().UTC(),
		Rows:      []report.Row{},
		Failures:  []unit.Failure{},
	}
	if batch == nil {
		return out
	}

	for _, res := range batch.Tested() {
		id := res.ID()
		row := report.Row{
			Unit:             id,
			Pathway:          res.Ref.Pathway,
			Module:           res.Ref.Module,
			PValue:           res.PValue,
			Covariates:       append([]string(nil), res.Covariates...),
			CovariatePValues: copyPValues(res.CovariatePValues),
			Omics:            append([]string(nil), res.Omics...),
			DroppedOmics:     append([]string(nil), res.DroppedOmics...),
		}
		if c, ok := resampling.Count(id); ok {
			count := c
			row.SuccessCount = &count
			row.Iterations = resampling.Iterations
		}
		out.Rows = append(out.Rows, row)
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		return out.Rows[i].PValue < out.Rows[j].PValue
	})

	pvalues := make([]float64, len(out.Rows))
	for i, row := range out.Rows {
		pvalues[i] = row.PValue
	}
	adjusted := AdjustBH(pvalues)
	for i := range out.Rows {
		out.Rows[i].Rank = i + 1
		out.Rows[i].AdjustedPValue = adjusted[i]
	}

	seen := make(map[unit.ID]bool, len(batch.Failures))
	for _, f := range batch.Failures {
		if seen[f.Unit] {
			continue
		}
		if _, tested := batch.Units[f.Unit]; tested {
			continue
		}
		seen[f.Unit] = true
		out.Failures = append(out.Failures, f)
	}
	return out
}

// AdjustBH returns Benjamini-Hochberg adjusted p-values in input order
func AdjustBH(pvalues []float64) []float64 {
	m := len(pvalues)
	out := make([]float64, m)
	if m == 0 {
		return out
	}
	order := make([]int, m)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return pvalues[order[a]] < pvalues[order[b]] })

	running := 1.0
	for k := m - 1; k >= 0; k-- {
		i := order[k]
		q := pvalues[i] * float64(m) / float64(k+1)
		running = math.Min(running, q)
		out[i] = math.Min(1, running)
	}
	return out
}

func copyPValues(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
