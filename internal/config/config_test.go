package config

import (
	"testing"
	"time"

	"omicpath/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "OMICPATH_ITERATIONS", "OMICPATH_DROP", "OMICPATH_ALPHA",
		"OMICPATH_SEED", "OMICPATH_WORKERS", "OMICPATH_CACHE_DIR", "OMICPATH_MIN_MODULE_SIZE", "PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Analysis.Iterations)
	assert.Equal(t, 3, cfg.Analysis.Drop)
	assert.Equal(t, 0.05, cfg.Analysis.Alpha)
	assert.Equal(t, int64(42), cfg.Analysis.Seed)
	assert.Equal(t, 1, cfg.Analysis.MinModuleSize)
	assert.GreaterOrEqual(t, cfg.Analysis.Workers, 1)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Empty(t, cfg.Cache.Dir)

	err = cfg.RequireDatabase()
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/omicpath")
	t.Setenv("OMICPATH_ITERATIONS", "250")
	t.Setenv("OMICPATH_DROP", "5")
	t.Setenv("OMICPATH_ALPHA", "0.01")
	t.Setenv("OMICPATH_WORKERS", "2")
	t.Setenv("OMICPATH_CACHE_TTL", "90m")
	t.Setenv("OMICPATH_SEED", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Analysis.Iterations)
	assert.Equal(t, 5, cfg.Analysis.Drop)
	assert.Equal(t, 0.01, cfg.Analysis.Alpha)
	assert.Equal(t, 2, cfg.Analysis.Workers)
	assert.Equal(t, 90*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, int64(42), cfg.Analysis.Seed, "unparsable values fall back to defaults")
	assert.NoError(t, cfg.RequireDatabase())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"OMICPATH_ALPHA":           "1.5",
		"OMICPATH_WORKERS":         "0",
		"OMICPATH_ITERATIONS":      "-1",
		"OMICPATH_MIN_MODULE_SIZE": "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
