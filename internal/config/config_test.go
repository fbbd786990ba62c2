package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(viper.New(), dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err, "default config file should be written")

	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.HistoryRefreshInterval)
	assert.Equal(t, 24, cfg.HistoryHours)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, filepath.Join(dir, "history.db"), cfg.DatabasePath)
	assert.Equal(t, 10*time.Second, cfg.Agent.PollInterval)
	assert.Equal(t, "pass", cfg.Agent.AuthCode)
}

func TestLoadConfigReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	body := `{"server_url": "http://gpu-dash:9000", "refresh_interval": "10s", "history_hours": 168,
		"agent": {"auth_code": "s3cret", "poll_interval": "1m"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(body), 0644))

	cfg, err := LoadConfig(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "http://gpu-dash:9000", cfg.ServerURL)
	assert.Equal(t, 10*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 168, cfg.HistoryHours)
	assert.Equal(t, "s3cret", cfg.Agent.AuthCode)
	assert.Equal(t, time.Minute, cfg.Agent.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Agent.PostInterval)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CLUSTERDASH_SERVER_URL", "http://from-env:8080")
	t.Setenv("CLUSTERDASH_AGENT_AUTH_CODE", "env-code")

	cfg, err := LoadConfig(viper.New(), dir)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:8080", cfg.ServerURL)
	assert.Equal(t, "env-code", cfg.Agent.AuthCode)
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"server_url": "not a url"}`), 0644))
	_, err := LoadConfig(viper.New(), dir)
	assert.ErrorContains(t, err, "invalid server_url")

	cfg := Config{ServerURL: "http://x", RefreshInterval: 0, HistoryRefreshInterval: time.Minute, HistoryHours: 1}
	assert.ErrorContains(t, cfg.Validate(), "refresh_interval")
}
