package gpu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvBackend, " Host ")
	t.Setenv(EnvWorkers, "3")
	t.Setenv(EnvQueueDepth, "16")
	t.Setenv(EnvBudgetMB, "2")
	t.Setenv(EnvMapTimeout, "250ms")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendHost, cfg.Backend)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 16, cfg.QueueDepth)
	assert.Equal(t, int64(2<<20), cfg.MemoryBudget)
	assert.Equal(t, 250*time.Millisecond, cfg.MapTimeout)
	assert.NotNil(t, cfg.Logger)
}

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, k := range EnvKeys {
		t.Setenv(k, "")
	}
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestConfigFromEnvErrors(t *testing.T) {
	tests := []struct{ key, value string }{
		{EnvBackend, "cuda"},
		{EnvWorkers, "many"},
		{EnvWorkers, "-1"},
		{EnvQueueDepth, "0"},
		{EnvBudgetMB, "1.5"},
		{EnvMapTimeout, "soon"},
		{EnvLogLevel, "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := ConfigFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := []func(*Config){
		func(c *Config) { c.Backend = "vulkan" },
		func(c *Config) { c.Workers = -2 },
		func(c *Config) { c.QueueDepth = 0 },
		func(c *Config) { c.MemoryBudget = -1 },
		func(c *Config) { c.MapTimeout = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidValue, "case %d", i)
	}

	_, err := NewContext(Config{Backend: BackendHost})
	assert.ErrorIs(t, err, ErrInvalidValue, "zero queue depth")
}
