package testkit

import (
	"context"
	"testing"

	"omicpath/domain/core"
	"omicpath/domain/omics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRNGAdapter_StreamIsDeterministicPerKey(t *testing.T) {
	rng := NewTestKit().RNGAdapter()
	ctx := context.Background()

	a, err := rng.Stream(ctx, "run", "resample", "7", 42)
	require.NoError(t, err)
	b, err := rng.Stream(ctx, "run", "resample", "7", 42)
	require.NoError(t, err)
	c, err := rng.Stream(ctx, "run", "resample", "8", 42)
	require.NoError(t, err)

	x, y, z := a.Int63(), b.Int63(), c.Int63()
	assert.Equal(t, x, y)
	assert.NotEqual(t, x, z)
}

func TestMemoryCache(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()
	key := core.NewHash([]byte("k"))

	_, err := cache.Get(ctx, key)
	assert.ErrorIs(t, err, core.ErrCacheMiss)
	assert.True(t, core.IsNotFoundError(err))

	value := []byte("payload")
	require.NoError(t, cache.Put(ctx, key, value))
	value[0] = 'X'

	got, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, 1, cache.Hits())
}

func TestNewDataset_IsReproducible(t *testing.T) {
	cfg := DefaultDatasetConfig()
	a, err := NewDataset(cfg)
	require.NoError(t, err)
	b, err := NewDataset(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())

	cfg.Seed = 2
	c, err := NewDataset(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.Hash(), c.Hash())

	assert.Equal(t, []string{OmicExpression, OmicMutation}, a.Omics())
	assert.Equal(t, 20, a.NumSamples())
}

func TestNewDataset_TwoClassAndSeparatingGene(t *testing.T) {
	cfg := DefaultDatasetConfig()
	cfg.Outcome = omics.OutcomeTwoClass
	cfg.Separating = true
	cfg.Omics = []string{OmicExpression}

	ds, err := NewDataset(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{OmicExpression}, ds.Omics())
	assert.Contains(t, ds.GeneUniverse(OmicExpression), SeparatingGene)
	assert.Len(t, ds.Outcome().Classes(), 2)
}

func TestGenerateCopiesSamplesPerMatrix(t *testing.T) {
	matrices, outcome := Generate(DatasetConfig{Samples: 10, Genes: 3, Effect: 1, Outcome: omics.OutcomeSurvival, Seed: 1})
	require.Len(t, matrices, 2)

	outcome.Samples[0], outcome.Samples[1] = outcome.Samples[1], outcome.Samples[0]
	for omic, m := range matrices {
		assert.Equal(t, SampleIDs(10), m.Samples, omic)
	}

	expr := matrices[OmicExpression]
	expr.Samples[2] = "changed"
	assert.Equal(t, SampleIDs(10)[2], matrices[OmicMutation].Samples[2])
}
