package app

import (
	"context"
	"math"
	"strings"
	"testing"

	"omicpath/domain/core"
	"omicpath/domain/pathway"
	"omicpath/domain/unit"
	"omicpath/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner(opts BatchOptions) *BatchRunner {
	return NewBatchRunner(NewUnitTester(nil, DefaultModelOptions(), nil), opts)
}

func TestBatchRunner_SingleModule(t *testing.T) {
	ds := scenarioDataset(t, 10)
	coll := testkit.Collection(testkit.ChainPathway("P1", "G1", "G2", "G3"))

	batch, err := newRunner(BatchOptions{Workers: 2}).Run(context.Background(), ds, coll, BatchRequest{Mode: ModeModule})
	require.NoError(t, err)

	require.Len(t, batch.Units, 1)
	assert.Equal(t, []unit.ID{"P1#1"}, batch.Order)
	assert.Empty(t, batch.Failures)

	res := batch.Units["P1#1"]
	require.NotNil(t, res)
	assert.Equal(t, unit.Ref{Pathway: "P1", Module: 1}, res.Ref)
	assert.Equal(t, []string{"G1", "G2", "G3"}, res.Genes)
	assert.False(t, math.IsNaN(res.PValue))
	assert.Contains(t, res.CovariatePValues, "exprPC1")
	assert.Contains(t, res.CovariatePValues, "mutCount")
}

func TestBatchRunner_PathwayWithoutDataGenesIsSkipped(t *testing.T) {
	ds := scenarioDataset(t, 10)
	coll := testkit.Collection(
		testkit.ChainPathway("P1", "G1", "G2", "G3"),
		testkit.ChainPathway("OFFDATA", "X1", "X2"),
	)

	for _, mode := range []Mode{ModeModule, ModePathway} {
		batch, err := newRunner(BatchOptions{}).Run(context.Background(), ds, coll, BatchRequest{Mode: mode})
		require.NoError(t, err)

		require.Len(t, batch.Failures, 1, mode)
		f := batch.Failures[0]
		assert.Equal(t, unit.ID("OFFDATA"), f.Unit)
		assert.Equal(t, unit.StatusSkipped, f.Status)
		assert.Contains(t, f.Reason, core.ErrEmptyUnit.Error())
		assert.NotContains(t, batch.Units, unit.ID("OFFDATA"))
	}
}

func TestBatchRunner_FitFailureIsRecordedOnce(t *testing.T) {
	cfg := testkit.DefaultDatasetConfig()
	cfg.Separating = true
	ds, err := testkit.NewDataset(cfg)
	require.NoError(t, err)

	coll := testkit.Collection(
		testkit.ChainPathway("P1", "G1", "G2", "G3"),
		&pathway.Graph{Name: "SEPW", Nodes: []string{testkit.SeparatingGene}},
	)
	batch, err := newRunner(BatchOptions{Workers: 4}).Run(context.Background(), ds, coll, BatchRequest{Mode: ModeModule})
	require.NoError(t, err)

	assert.Equal(t, []unit.ID{"P1#1", "SEPW#1"}, batch.Order)
	assert.Contains(t, batch.Units, unit.ID("P1#1"))
	assert.NotContains(t, batch.Units, unit.ID("SEPW#1"))

	count := 0
	for _, f := range batch.Failures {
		if f.Unit == "SEPW#1" {
			count++
			assert.Equal(t, unit.StatusFitFailed, f.Status)
		}
	}
	assert.Equal(t, 1, count)
}

func TestBatchRunner_ModulesFollowPartition(t *testing.T) {
	ds := scenarioDataset(t, 20)
	split := &pathway.Graph{
		Name:  "SPLIT",
		Nodes: []string{"G1", "G2", "X9", "G3"},
		Edges: []pathway.Edge{{From: "G1", To: "G2"}, {From: "X9", To: "G3"}},
	}
	batch, err := newRunner(BatchOptions{}).Run(context.Background(), ds, testkit.Collection(split), BatchRequest{Mode: ModeModule})
	require.NoError(t, err)

	assert.Equal(t, []unit.ID{"SPLIT#1", "SPLIT#2"}, batch.Order)
	assert.Equal(t, len(batch.Order), len(batch.Units)+len(batch.Failures))
	if r, ok := batch.Units["SPLIT#1"]; ok {
		assert.Equal(t, []string{"G1", "G2"}, r.Genes)
	}
}

func TestBatchRunner_OnlyRestrictsUnits(t *testing.T) {
	ds := scenarioDataset(t, 20)
	coll := testkit.Collection(
		testkit.ChainPathway("A", "G1", "G2", "G3"),
		testkit.ChainPathway("B", "G1", "G2", "G3"),
	)

	batch, err := newRunner(BatchOptions{}).Run(context.Background(), ds, coll,
		BatchRequest{Mode: ModePathway, Only: []unit.ID{"B", "MISSING"}})
	require.NoError(t, err)

	assert.Equal(t, []unit.ID{"B", "MISSING"}, batch.Order)
	assert.Contains(t, batch.Units, unit.ID("B"))
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, unit.ID("MISSING"), batch.Failures[0].Unit)
	assert.True(t, strings.Contains(batch.Failures[0].Reason, "not present"))
}

func TestBatchRunner_IsDeterministicAcrossWorkerCounts(t *testing.T) {
	ds := scenarioDataset(t, 20)
	coll := testkit.Collection(
		testkit.ChainPathway("A", "G1", "G2", "G3"),
		testkit.ChainPathway("B", "G2", "G3"),
		testkit.ChainPathway("C", "G1"),
	)
	ctx := context.Background()

	serial, err := newRunner(BatchOptions{Workers: 1}).Run(ctx, ds, coll, BatchRequest{Mode: ModeModule})
	require.NoError(t, err)
	parallel, err := newRunner(BatchOptions{Workers: 8}).Run(ctx, ds, coll, BatchRequest{Mode: ModeModule})
	require.NoError(t, err)

	assert.Equal(t, serial.Order, parallel.Order)
	assert.Equal(t, serial.Failures, parallel.Failures)
	for id, r := range serial.Units {
		assert.Equal(t, r.PValue, parallel.Units[id].PValue, id)
	}
}

func TestBatchRunner_UsesCache(t *testing.T) {
	ds := scenarioDataset(t, 10)
	coll := testkit.Collection(testkit.ChainPathway("P1", "G1", "G2", "G3"))
	cache := testkit.NewMemoryCache()
	runner := newRunner(BatchOptions{Cache: cache})
	ctx := context.Background()

	first, err := runner.Run(ctx, ds, coll, BatchRequest{Mode: ModeModule})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 0, cache.Hits())

	second, err := runner.Run(ctx, ds, coll, BatchRequest{Mode: ModeModule})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Hits())
	assert.Equal(t, first.Order, second.Order)
	assert.InDelta(t, first.Units["P1#1"].PValue, second.Units["P1#1"].PValue, 1e-15)

	_, err = runner.Run(ctx, ds, coll, BatchRequest{Mode: ModePathway})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
}

func TestBatchRunner_CacheKeyCoversSolverOptions(t *testing.T) {
	ds := scenarioDataset(t, 10)
	coll := testkit.Collection(testkit.ChainPathway("P1", "G1", "G2", "G3"))
	cache := testkit.NewMemoryCache()
	ctx := context.Background()

	loose := DefaultModelOptions()
	loose.Tol = 1e-4
	loose.MaxIter = 5

	_, err := newRunner(BatchOptions{Cache: cache}).Run(ctx, ds, coll, BatchRequest{Mode: ModePathway})
	require.NoError(t, err)
	_, err = NewBatchRunner(NewUnitTester(nil, loose, nil), BatchOptions{Cache: cache}).Run(ctx, ds, coll, BatchRequest{Mode: ModePathway})
	require.NoError(t, err)

	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, 0, cache.Hits())
}

func TestBatchRunner_RejectsBadRequests(t *testing.T) {
	ds := scenarioDataset(t, 10)
	coll := testkit.Collection(testkit.ChainPathway("P1", "G1"))
	ctx := context.Background()

	_, err := newRunner(BatchOptions{}).Run(ctx, ds, coll, BatchRequest{Mode: "genome"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = newRunner(BatchOptions{UniverseOmic: "rna"}).Run(ctx, ds, coll, BatchRequest{Mode: ModeModule})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = newRunner(BatchOptions{}).Run(ctx, nil, coll, BatchRequest{Mode: ModeModule})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestBatchRunner_CancelledContextAborts(t *testing.T) {
	ds := scenarioDataset(t, 10)
	coll := testkit.Collection(testkit.ChainPathway("P1", "G1", "G2", "G3"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(BatchOptions{}).Run(ctx, ds, coll, BatchRequest{Mode: ModeModule})
	assert.ErrorIs(t, err, context.Canceled)
}
