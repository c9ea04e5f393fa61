package cache

import (
	"context"
	"testing"

	"omicpath/domain/core"
	"omicpath/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.CachePort = (*BadgerCache)(nil)

func TestBadgerCache_InMemoryRoundTrip(t *testing.T) {
	c, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := core.NewHash([]byte("analysis"))

	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	require.NoError(t, c.Put(ctx, key, []byte(`{"order":["P1#1"]}`)))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"order":["P1#1"]}`, string(got))

	require.NoError(t, c.Delete(ctx, key))
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, core.ErrCacheMiss)
}

func TestBadgerCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	key := core.NewHash([]byte("k"))

	c, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, key, []byte("v1")))
	require.NoError(t, c.Close())

	c, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer c.Close()
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestBadgerCache_HonoursCancelledContext(t *testing.T) {
	c, err := Open(InMemoryConfig())
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Put(ctx, core.NewHash(nil), []byte("x")), context.Canceled)
}
