package validation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"omicpath/app"
	"omicpath/domain/core"
	"omicpath/domain/omics"
	"omicpath/domain/pathway"
	"omicpath/domain/unit"
	"omicpath/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keyBatcher marks a unit significant unless the sample it watches was dropped
type keyBatcher struct {
	watch map[unit.ID]string
	calls atomic.Int64
	fail  error
}

func (b *keyBatcher) Run(ctx context.Context, ds *omics.Dataset, coll *pathway.Collection, req app.BatchRequest) (*unit.BatchResult, error) {
	b.calls.Add(1)
	if b.fail != nil {
		return nil, b.fail
	}
	present := make(map[string]bool)
	for _, s := range ds.Samples() {
		present[s] = true
	}
	out := unit.NewBatchResult()
	for _, id := range req.Only {
		p := 0.5
		if present[b.watch[id]] {
			p = 0.01
		}
		ref, _ := unit.ParseID(id)
		out.Order = append(out.Order, id)
		out.Units[id] = &unit.Result{Ref: ref, PValue: p}
	}
	return out, nil
}

func fixture(t *testing.T) (*omics.Dataset, *pathway.Collection) {
	t.Helper()
	cfg := testkit.DefaultDatasetConfig()
	cfg.Omics = []string{testkit.OmicExpression}
	ds, err := testkit.NewDataset(cfg)
	require.NoError(t, err)
	return ds, testkit.Collection(testkit.ChainPathway("P1", "G1", "G2", "G3"))
}

func TestResampler_AlwaysSignificantUnit(t *testing.T) {
	ds, coll := fixture(t)
	runner := app.NewBatchRunner(nil, app.BatchOptions{Workers: 2})
	ctx := context.Background()

	batch, err := runner.Run(ctx, ds, coll, app.BatchRequest{Mode: app.ModeModule})
	require.NoError(t, err)
	significant := batch.Significant(0.05)
	require.Equal(t, []unit.ID{"P1#1"}, significant)

	cfg := DefaultResamplingConfig()
	cfg.Workers = 4
	res, err := NewResampler(cfg, runner, testkit.NewTestKit().RNGAdapter(), nil).
		Run(ctx, ds, coll, app.ModeModule, significant)
	require.NoError(t, err)

	assert.Equal(t, 100, res.Iterations)
	assert.Equal(t, 3, res.DropPerIteration)
	assert.Equal(t, 100, res.SuccessCount["P1#1"])
	assert.InDelta(t, 1.0, res.StabilityScore("P1#1"), 1e-12)
}

func TestResampler_ZeroIterationsIsNoOp(t *testing.T) {
	ds, coll := fixture(t)
	before := ds.Hash()
	batcher := &keyBatcher{}

	cfg := DefaultResamplingConfig()
	cfg.Iterations = 0
	res, err := NewResampler(cfg, batcher, &testkit.RNGAdapter{}, nil).
		Run(context.Background(), ds, coll, app.ModeModule, []unit.ID{"P1#1", "P2"})
	require.NoError(t, err)

	assert.Equal(t, map[unit.ID]int{"P1#1": 0, "P2": 0}, res.SuccessCount)
	assert.Zero(t, batcher.calls.Load())
	assert.Equal(t, before, ds.Hash())
	assert.Equal(t, 20, ds.NumSamples())
}

func TestResampler_CountsAreIndependentOfScheduling(t *testing.T) {
	ds, coll := fixture(t)
	units := []unit.ID{"A", "B", "C"}
	watch := map[unit.ID]string{"A": "S01", "B": "S07", "C": "S20"}

	run := func(workers int) *unit.ResamplingResult {
		cfg := ResamplingConfig{Iterations: 50, DropPerIteration: 5, Alpha: 0.05, Seed: 7, Workers: workers, RunID: "r1", KeepDropped: true}
		res, err := NewResampler(cfg, &keyBatcher{watch: watch}, &testkit.RNGAdapter{}, nil).
			Run(context.Background(), ds, coll, app.ModePathway, units)
		require.NoError(t, err)
		return res
	}

	serial, parallel := run(1), run(16)
	assert.Equal(t, serial.SuccessCount, parallel.SuccessCount)
	assert.Equal(t, serial.Dropped, parallel.Dropped)

	for _, id := range units {
		c := serial.SuccessCount[id]
		assert.GreaterOrEqual(t, c, 0)
		assert.LessOrEqual(t, c, serial.Iterations)

		// the unit fails exactly in the iterations that dropped its sample
		misses := 0
		for _, d := range serial.Dropped {
			require.Len(t, d, 5)
			for _, s := range d {
				if s == watch[id] {
					misses++
				}
			}
		}
		assert.Equal(t, serial.Iterations-misses, c, id)
	}
}

func TestResampler_DuplicateUnitsCountOnce(t *testing.T) {
	ds, coll := fixture(t)
	cfg := ResamplingConfig{Iterations: 10, DropPerIteration: 1, Alpha: 0.05, Workers: 2}
	res, err := NewResampler(cfg, &keyBatcher{watch: map[unit.ID]string{"A": "none"}}, &testkit.RNGAdapter{}, nil).
		Run(context.Background(), ds, coll, app.ModePathway, []unit.ID{"A", "A"})
	require.NoError(t, err)
	assert.Equal(t, []unit.ID{"A"}, res.Units)
	assert.Equal(t, 0, res.SuccessCount["A"])
}

func TestResampler_PropagatesBatchErrors(t *testing.T) {
	ds, coll := fixture(t)
	boom := errors.New("boom")
	cfg := ResamplingConfig{Iterations: 3, DropPerIteration: 1, Alpha: 0.05}
	_, err := NewResampler(cfg, &keyBatcher{fail: boom}, &testkit.RNGAdapter{}, nil).
		Run(context.Background(), ds, coll, app.ModePathway, []unit.ID{"A"})
	assert.ErrorIs(t, err, boom)
}

func TestResamplingConfig_Validate(t *testing.T) {
	ok := DefaultResamplingConfig()
	require.NoError(t, ok.Validate(20))

	cases := map[string]func(c *ResamplingConfig){
		"negative iterations": func(c *ResamplingConfig) { c.Iterations = -1 },
		"negative drop":       func(c *ResamplingConfig) { c.DropPerIteration = -2 },
		"drop all samples":    func(c *ResamplingConfig) { c.DropPerIteration = 20 },
		"zero alpha":          func(c *ResamplingConfig) { c.Alpha = 0 },
		"alpha above one":     func(c *ResamplingConfig) { c.Alpha = 1.5 },
		"negative workers":    func(c *ResamplingConfig) { c.Workers = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := DefaultResamplingConfig()
			mutate(&c)
			assert.ErrorIs(t, c.Validate(20), core.ErrInvalidInput)
		})
	}
}
