package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "reconcilarr.db"), cfg.DatabaseFile)
	assert.Equal(t, filepath.Join(dir, "blacklist.txt"), cfg.BlacklistFile)
	assert.Equal(t, 2, cfg.SearchRetries)
	assert.Equal(t, 1500*time.Millisecond, cfg.SearchRetryDelay)
	assert.Equal(t, 15*time.Minute, cfg.MinCheckInterval)
	assert.Equal(t, 2*time.Second, cfg.StabilityWait)
	assert.Equal(t, int64(50*1024*1024), cfg.MinMovieSize)
	assert.Equal(t, "@every 6h", cfg.GlobalSweepSchedule)

	assert.Error(t, cfg.ValidateServe())
}

func TestLoadFromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("GATEWAY_URL", "http://gateway:3000")
	t.Setenv("SEARCH_RETRIES", "4")
	t.Setenv("MIN_CHECK_INTERVAL_MINUTES", "30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://gateway:3000", cfg.GatewayURL)
	assert.Equal(t, 4, cfg.SearchRetries)
	assert.Equal(t, 30*time.Minute, cfg.MinCheckInterval)
	assert.NoError(t, cfg.ValidateServe())
}

func TestValidateServeRequiresNewznabKey(t *testing.T) {
	cfg := &Config{NewznabURL: "http://indexer"}
	assert.Error(t, cfg.ValidateServe())

	cfg.NewznabKey = "key"
	assert.NoError(t, cfg.ValidateServe())
}
