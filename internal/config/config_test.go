package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcn2sql/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "rcn_raw.sqlite", cfg.DB.Path)
	assert.Equal(t, 30, cfg.DB.BusyTimeoutSecs)
	assert.Equal(t, 100000, cfg.Load.BatchSize)
	assert.Equal(t, 500000, cfg.Load.LogEvery)
	assert.Equal(t, "rcn_wide", cfg.Wide.Table)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.Log.File)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RCN2SQL_DB_PATH", "/data/rcn.sqlite")
	t.Setenv("RCN2SQL_DB_BUSY_TIMEOUT_SECS", "5")
	t.Setenv("RCN2SQL_LOAD_BATCH_SIZE", "2500")
	t.Setenv("RCN2SQL_WIDE_TABLE", "rcn_wide_test")
	t.Setenv("RCN2SQL_LOG_LEVEL", "debug")
	t.Setenv("RCN2SQL_LOG_FORMAT", "json")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/rcn.sqlite", cfg.DB.Path)
	assert.Equal(t, 5, cfg.DB.BusyTimeoutSecs)
	assert.Equal(t, 2500, cfg.Load.BatchSize)
	assert.Equal(t, 500000, cfg.Load.LogEvery)
	assert.Equal(t, "rcn_wide_test", cfg.Wide.Table)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}
