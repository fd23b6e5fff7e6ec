package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.ServerAddress)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, PartialFailureBatch, cfg.PartialFailureMode)
	assert.Equal(t, 24*time.Hour, cfg.PullInterval)
	assert.Equal(t, 24*time.Hour, cfg.PushInterval)
	assert.Equal(t, []int{14, 15}, cfg.TileZoomLevels)
	assert.Equal(t, 10000, cfg.TileMaxCount)
	assert.Equal(t, "127.0.0.1:7411", cfg.ControlAddress)
	assert.Equal(t, dir+"/local.db", cfg.DataPath)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
	assert.True(t, cfg.IsLocal())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("ENABLE_TLS", "true")
	t.Setenv("SERVER_ADDRESS", "sync.example.org")
	t.Setenv("PARTIAL_FAILURE_MODE", "RECORD")
	t.Setenv("TILE_ZOOM_LEVELS", "12, 13,14")
	t.Setenv("SYNC_BATCH_SIZE", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sync.example.org", cfg.BaseURL())
	assert.Equal(t, PartialFailureRecord, cfg.PartialFailureMode)
	assert.Equal(t, []int{12, 13, 14}, cfg.TileZoomLevels)
	assert.Equal(t, 10, cfg.BatchSize)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "batch size", key: "SYNC_BATCH_SIZE", val: "0"},
		{name: "partial mode", key: "PARTIAL_FAILURE_MODE", val: "maybe"},
		{name: "zoom", key: "TILE_ZOOM_LEVELS", val: "14,abc"},
		{name: "interval", key: "PULL_INTERVAL_HOURS", val: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_DIR", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
