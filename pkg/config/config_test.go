package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "neo4j", cfg.StoreBackend)
	assert.Equal(t, 60, cfg.DecayIntervalMinutes)
	assert.Equal(t, 0.1, cfg.DecayRate)
	assert.Equal(t, 0.05, cfg.DecayAccessBoost)
	assert.Equal(t, 0.1, cfg.MinUrgencyThreshold)
	assert.Equal(t, 30, cfg.PruneOlderThanDays)
}

func TestLoad_SQLiteBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/test.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "/tmp/test.db", cfg.SQLitePath)
}

func TestValidate_UnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "redis")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_BadInterval(t *testing.T) {
	t.Setenv("DECAY_INTERVAL_MINUTES", "-5")

	_, err := Load()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DECAY_RATE", "0.25")
	t.Setenv("PRUNE_OLDER_THAN_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.DecayRate)
	assert.Equal(t, 7, cfg.PruneOlderThanDays)
}
