package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
url: tcp://broker.example.com:3755
user: alice
password: secret
device_id: thermo-1
reconnect_interval: 2s
logging:
  level: debug
  format: json
metrics:
  enabled: true
  port: 9191
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.example.com:3755", cfg.URL)
	assert.Equal(t, "alice", cfg.User)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "thermo-1", cfg.DeviceID)
	assert.Equal(t, 2*time.Second, cfg.ReconnectInterval)

	// Defaults fill the gaps.
	assert.Equal(t, DefaultHeartbeatInterval, cfg.HeartbeatInterval)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SHVC_URL", "tcp://env-broker:3755")
	t.Setenv("SHVC_PASSWORD", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "tcp://env-broker:3755", cfg.URL)
	assert.Equal(t, "env-secret", cfg.Password)
}

func TestLoad_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metrics:\n  port: 99999\nurl: tcp://x:1\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingURLFails(t *testing.T) {
	// No file, no env: URL is required.
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.URL = "tcp://saved:3755"
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://saved:3755", loaded.URL)
	assert.Equal(t, cfg.ReconnectInterval, loaded.ReconnectInterval)
}
