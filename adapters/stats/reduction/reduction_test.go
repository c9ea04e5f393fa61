package reduction

import (
	"math"
	"math/rand"
	"testing"

	"omicpath/domain/core"
	"omicpath/domain/omics"
	domain "omicpath/domain/reduction"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}

func randomMatrix(genes []string, n int, seed int64) omics.Matrix {
	rng := rand.New(rand.NewSource(seed))
	m := omics.Matrix{Genes: genes, Samples: sampleIDs(n)}
	for range genes {
		row := make([]float64, n)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		m.Values = append(m.Values, row)
	}
	return m
}

func TestRegistry_LookupAndVerify(t *testing.T) {
	r := NewRegistry()
	for _, m := range domain.Methods() {
		s, err := r.Lookup(m)
		require.NoError(t, err, m)
		assert.Equal(t, m, s.Method())
	}

	_, err := r.Lookup(domain.Method("pls"))
	assert.ErrorIs(t, err, core.ErrUnknownMethod)

	err = r.Verify(domain.Config{"exp": {Method: domain.MethodComponents}, "met": {Method: "oops"}})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestComponents_ReducesToScores(t *testing.T) {
	sub := randomMatrix([]string{"7157", "1029", "4193"}, 10, 1)
	covs, err := NewRegistry().Reduce("exp", domain.Spec{Method: domain.MethodComponents, Params: domain.Params{MaxComponents: 2}}, sub, nil)
	require.NoError(t, err)
	require.Len(t, covs, 2)
	assert.Equal(t, "expPC1", covs[0].Name)
	assert.Equal(t, "expPC2", covs[1].Name)
	assert.Len(t, covs[0].Values, 10)

	// first component carries at least as much variance as the second
	assert.GreaterOrEqual(t, variance(covs[0].Values)+1e-9, variance(covs[1].Values))
}

func TestComponents_IsDeterministic(t *testing.T) {
	sub := randomMatrix([]string{"g1", "g2", "g3", "g4"}, 12, 7)
	r := NewRegistry()
	for _, m := range []domain.Method{domain.MethodComponents, domain.MethodSparseComponents, domain.MethodTopologyComponents} {
		spec := domain.Spec{Method: m, Params: domain.Params{Shrink: 0.4}}
		topo := &domain.Topology{Edges: []domain.Edge{{From: "g1", To: "g2"}, {From: "g2", To: "g3"}}}
		a, err := r.Reduce("exp", spec, sub, topo)
		require.NoError(t, err, m)
		b, err := r.Reduce("exp", spec, sub, topo)
		require.NoError(t, err, m)
		assert.Equal(t, a, b, m)
	}
}

func TestComponents_InsufficientData(t *testing.T) {
	r := NewRegistry()
	spec := domain.Spec{Method: domain.MethodComponents}

	_, err := r.Reduce("exp", spec, omics.Matrix{Samples: sampleIDs(5)}, nil)
	assert.ErrorIs(t, err, core.ErrInsufficientData)

	flat := omics.Matrix{Genes: []string{"g"}, Samples: sampleIDs(4), Values: [][]float64{{2, 2, 2, 2}}}
	_, err = r.Reduce("exp", spec, flat, nil)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func TestSoftThreshold_ZeroesSmallLoadings(t *testing.T) {
	out := softThreshold([]float64{0.8, -0.5, 0.1}, 0.5)
	assert.Equal(t, 0.0, out[2])
	assert.Greater(t, out[0], 0.0)
	assert.Less(t, out[1], 0.0)
	norm := 0.0
	for _, v := range out {
		norm += v * v
	}
	assert.InDelta(t, 1.0, norm, 1e-12)
}

func TestKMeans_SeparatesGroups(t *testing.T) {
	rows := [][]float64{
		{1, 2, 3, 4},
		{1.1, 2.1, 2.9, 4.2},
		{-4, -3, -2, -1},
		{-4.1, -2.9, -2.2, -0.9},
	}
	assert.Equal(t, []int{0, 0, 1, 1}, kmeans(rows, 2))
	assert.Equal(t, []int{0, 0, 0, 0}, kmeans(rows, 1))
}

func TestClusters_AveragesCorrelatedProbes(t *testing.T) {
	sub := omics.Matrix{
		Genes:   []string{"cg1", "cg2", "cg3", "cg4"},
		Samples: sampleIDs(5),
		Values: [][]float64{
			{0.1, 0.2, 0.3, 0.4, 0.5},
			{0.11, 0.19, 0.32, 0.41, 0.52},
			{0.9, 0.1, 0.8, 0.1, 0.9},
			{0.88, 0.12, 0.79, 0.09, 0.91},
		},
	}
	covs, err := NewRegistry().Reduce("met", domain.Spec{Method: domain.MethodClusters, Params: domain.Params{MaxClusters: 2}}, sub, nil)
	require.NoError(t, err)
	require.Len(t, covs, 2)
	assert.Equal(t, "metCL1", covs[0].Name)
	assert.Equal(t, "metCL2", covs[1].Name)
	// first cluster follows the monotone probes
	assert.Less(t, covs[0].Values[0], covs[0].Values[4])
}

func TestEventCount_MinProportion(t *testing.T) {
	sub := omics.Matrix{
		Genes:   []string{"g1", "g2", "g3"},
		Samples: sampleIDs(10),
		Values: [][]float64{
			{1, 0, 1, 0, 0, 0, 0, 0, 0, 0},
			{0, 0, 1, 1, 1, 0, 0, 0, 0, 0},
			{0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		},
	}
	covs, err := NewRegistry().Reduce("mut", domain.Spec{Method: domain.MethodEventCount, Params: domain.Params{MinProportion: 0.2}}, sub, nil)
	require.NoError(t, err)
	require.Len(t, covs, 1)
	assert.Equal(t, "mutCount", covs[0].Name)
	assert.Equal(t, []float64{1, 0, 2, 1, 1, 0, 0, 0, 0, 0}, covs[0].Values)
}

func TestEventCount_Directional(t *testing.T) {
	sub := omics.Matrix{
		Genes:   []string{"c1", "c2"},
		Samples: sampleIDs(10),
		Values: [][]float64{
			{2, -2, 0, 1, 0, 0, -1, 0, 0, 0},
			{0, 0, 0, 0, 2, 0, 0, -2, 0, 0},
		},
	}
	spec := domain.Spec{Method: domain.MethodEventCount, Params: domain.Params{MinProportion: 0.2, Directional: true}}
	covs, err := NewRegistry().Reduce("cnv", spec, sub, nil)
	require.NoError(t, err)
	require.Len(t, covs, 2)
	assert.Equal(t, "cnvGain", covs[0].Name)
	assert.Equal(t, []float64{1, 0, 0, 1, 0, 0, 0, 0, 0, 0}, covs[0].Values)
	assert.Equal(t, "cnvLoss", covs[1].Name)
	assert.Equal(t, []float64{0, 1, 0, 0, 0, 0, 1, 0, 0, 0}, covs[1].Values)
}

func TestEventCount_NoEvents(t *testing.T) {
	sub := omics.Matrix{Genes: []string{"g1"}, Samples: sampleIDs(4), Values: [][]float64{{0, 0, 0, 0}}}
	_, err := NewRegistry().Reduce("mut", domain.Spec{Method: domain.MethodEventCount}, sub, nil)
	assert.ErrorIs(t, err, core.ErrInsufficientData)
}

func variance(v []float64) float64 {
	mean := 0.0
	for _, x := range v {
		mean += x
	}
	mean /= float64(len(v))
	s := 0.0
	for _, x := range v {
		s += (x - mean) * (x - mean)
	}
	return s / math.Max(1, float64(len(v)-1))
}

func TestIsConstant(t *testing.T) {
	assert.True(t, isConstant(nil))
	assert.True(t, isConstant([]float64{4}))
	assert.True(t, isConstant([]float64{2, 2, 2}))
	assert.False(t, isConstant([]float64{1, 2, 3}))
}
