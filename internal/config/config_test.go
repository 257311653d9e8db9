package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, `
port: "9090"
auth:
  signing_key: "secret"
capture:
  interval: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.Interval)
	assert.Equal(t, 10*time.Second, cfg.Capture.RequestTimeout)
	assert.Equal(t, 1280, cfg.Capture.Width)
	assert.Equal(t, 720, cfg.Capture.Height)
	assert.Equal(t, "environment", cfg.Capture.FacingMode)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "app.db", cfg.DB.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "auth:\n  signing_key: from-file\n")
	t.Setenv("BOMBONA_AUTH_SIGNING_KEY", "from-env")
	t.Setenv("BOMBONA_CAPTURE_POLICY", "reject")
	t.Setenv("BOMBONA_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.SigningKey)
	assert.Equal(t, PolicyReject, cfg.Capture.Policy)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingSigningKey(t *testing.T) {
	path := writeConfig(t, "port: \"8080\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing_key")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DB:      DBConfig{Path: "x.db"},
			Store:   StoreConfig{Backend: BackendSQLite},
			Auth:    AuthConfig{SigningKey: "k"},
			Capture: CaptureConfig{Interval: time.Millisecond, RequestTimeout: time.Second, Width: 1, Height: 1, Policy: PolicyReject},
			Export:  ExportConfig{Timezone: "UTC"},
		}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.Store.Backend = BackendRemote
	assert.Error(t, c.Validate(), "remote backend needs base_url")

	c = base()
	c.Capture.Policy = "queue"
	assert.Error(t, c.Validate())

	c = base()
	c.Capture.Interval = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Export.Timezone = "Mars/Olympus"
	assert.Error(t, c.Validate())
}
