package analysis

import (
	"testing"

	"omicpath/domain/unit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batchFixture() *unit.BatchResult {
	b := unit.NewBatchResult()
	add := func(pw string, mod int, p float64) {
		ref := unit.Ref{Pathway: pw, Module: mod}
		b.Order = append(b.Order, ref.ID())
		b.Units[ref.ID()] = &unit.Result{
			Ref:              ref,
			Covariates:       []string{"exprPC1"},
			CovariatePValues: map[string]float64{"exprPC1": p},
			PValue:           p,
		}
	}
	add("A", 1, 0.03)
	add("B", 1, 0.001)
	add("C", 0, 0.03)
	add("D", 2, 0.5)
	for _, id := range []unit.ID{"E#1", "F"} {
		b.Order = append(b.Order, id)
	}
	b.Failures = []unit.Failure{
		{Unit: "E#1", Status: unit.StatusFitFailed, Reason: "separation"},
		{Unit: "F", Status: unit.StatusSkipped, Reason: "empty"},
		{Unit: "E#1", Status: unit.StatusFitFailed, Reason: "separation"},
	}
	return b
}

func TestBuildReport_RanksStably(t *testing.T) {
	r := BuildReport(batchFixture(), nil, ReportMeta{Mode: "module", Alpha: 0.05})

	var ids []unit.ID
	for _, row := range r.Rows {
		ids = append(ids, row.Unit)
	}
	assert.Equal(t, []unit.ID{"B#1", "A#1", "C", "D#2"}, ids)
	assert.Equal(t, 1, r.Rows[0].Rank)
	assert.Equal(t, 4, r.Rows[3].Rank)
	assert.Nil(t, r.Rows[0].SuccessCount)
	assert.Len(t, r.Significant(0.05), 3)
}

func TestBuildReport_FailuresListedOnceWithoutPValue(t *testing.T) {
	r := BuildReport(batchFixture(), nil, ReportMeta{})

	require.Len(t, r.Failures, 2)
	assert.Equal(t, unit.ID("E#1"), r.Failures[0].Unit)
	assert.Equal(t, unit.ID("F"), r.Failures[1].Unit)
	_, ok := r.Lookup("E#1")
	assert.False(t, ok)
}

func TestBuildReport_MergesResamplingAndFilters(t *testing.T) {
	resampling := &unit.ResamplingResult{
		SuccessCount: map[unit.ID]int{"B#1": 95, "A#1": 40},
		Iterations:   100,
	}
	r := BuildReport(batchFixture(), resampling, ReportMeta{})

	row, ok := r.Lookup("B#1")
	require.True(t, ok)
	require.NotNil(t, row.SuccessCount)
	assert.Equal(t, 95, *row.SuccessCount)
	assert.InDelta(t, 0.95, row.Stability(), 1e-12)

	c, _ := r.Lookup("C")
	assert.Nil(t, c.SuccessCount)

	stable := r.FilterStable(80)
	require.Len(t, stable.Rows, 1)
	assert.Equal(t, unit.ID("B#1"), stable.Rows[0].Unit)
	assert.Len(t, stable.Failures, 2)
	assert.Len(t, r.Rows, 4, "filter must not modify the report")

	assert.Empty(t, r.FilterStable(101).Rows)
	assert.Len(t, r.Top(2), 2)
	assert.Len(t, r.Top(0), 4)
}

func TestAdjustBH(t *testing.T) {
	got := AdjustBH([]float64{0.01, 0.04, 0.03, 0.2})
	want := []float64{0.04, 0.04 * 4 / 3, 0.04 * 4 / 3, 0.2}
	// rank 2 (0.06) is capped by rank 3 (0.0533)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, i)
	}
	assert.Empty(t, AdjustBH(nil))
	assert.Equal(t, []float64{1}, AdjustBH([]float64{1}))
}

func TestBuildReport_NilBatch(t *testing.T) {
	r := BuildReport(nil, nil, ReportMeta{})
	assert.Empty(t, r.Rows)
	assert.Empty(t, r.Failures)
}
