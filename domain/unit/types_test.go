package unit

import (
	"testing"

	"omicpath/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefIDRoundTrip(t *testing.T) {
	cases := []Ref{
		{Pathway: "hsa04110"},
		{Pathway: "hsa04110", Module: 3},
		{Pathway: "weird#name", Module: 1},
	}
	for _, ref := range cases {
		got, err := ParseID(ref.ID())
		require.NoError(t, err)
		assert.Equal(t, ref, got)
	}

	got, err := ParseID("tag#abc")
	require.NoError(t, err)
	assert.Equal(t, Ref{Pathway: "tag#abc"}, got)

	_, err = ParseID("")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusTested, StatusFor(nil))
	assert.Equal(t, StatusFitFailed, StatusFor(core.NewModelFitError("cox", "singular")))
	assert.Equal(t, StatusSkipped, StatusFor(core.NewEmptyUnitError("p")))
}

func TestSignificantKeepsBatchOrder(t *testing.T) {
	b := NewBatchResult()
	for i, p := range []float64{0.2, 0.01, 0.04} {
		ref := Ref{Pathway: "p", Module: i + 1}
		b.Order = append(b.Order, ref.ID())
		b.Units[ref.ID()] = &Result{Ref: ref, PValue: p}
	}
	b.Order = append(b.Order, "failed")
	b.Failures = append(b.Failures, Failure{Unit: "failed", Status: StatusFitFailed})

	assert.Equal(t, []ID{"p#2", "p#3"}, b.Significant(0.05))
	assert.Len(t, b.Tested(), 3)
}

func TestStabilityScore(t *testing.T) {
	r := &ResamplingResult{SuccessCount: map[ID]int{"a": 8}, Iterations: 10}
	assert.InDelta(t, 0.8, r.StabilityScore("a"), 1e-12)
	assert.Zero(t, r.StabilityScore("b"))

	var none *ResamplingResult
	_, ok := none.Count("a")
	assert.False(t, ok)
}
