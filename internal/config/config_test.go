package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 3, cfg.Queue.Attempts)
	require.Equal(t, 2*time.Second, cfg.BackoffBase())
	require.Equal(t, 10, cfg.Queue.RemoveOnComplete)
	require.Equal(t, 5, cfg.Queue.RemoveOnFail)
	require.Equal(t, time.Hour, cfg.CacheTTL())
	require.Equal(t, 30*time.Second, cfg.FetchTimeout())
	require.Equal(t, time.Second, cfg.Stagger())
	require.Equal(t, "analysis_records", cfg.DB.Table)
	require.NotEmpty(t, cfg.PageSpeed.Endpoint)
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
queue:
  attempts: 5
  backoff_base_ms: 500
auth:
  enabled: true
  api_key: secret
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 5, cfg.Queue.Attempts)
	require.Equal(t, 500*time.Millisecond, cfg.BackoffBase())
	require.True(t, cfg.Auth.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	bad := base
	bad.Server.Port = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.Queue.Attempts = 0
	require.Error(t, bad.Validate())

	bad = base
	bad.Auth.Enabled = true
	bad.Auth.APIKey = ""
	require.Error(t, bad.Validate())

	require.NoError(t, base.Validate())
}
