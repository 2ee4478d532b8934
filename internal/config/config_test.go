package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "@every 15m", cfg.Scan.CronSpec)
	require.Equal(t, 4, cfg.Scan.Workers)
	require.False(t, cfg.Scan.Sequential)
	require.Equal(t, "EBAY_US", cfg.Ebay.MarketplaceID)
	require.Equal(t, 3, cfg.Headless.MaxPages)
	require.True(t, cfg.Logging.Development)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
scan:
  cron_spec: "@every 5m"
  sequential: true
db:
  dsn: "postgres://localhost/parthawk"
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "@every 5m", cfg.Scan.CronSpec)
	require.True(t, cfg.Scan.Sequential)
	require.Equal(t, "postgres://localhost/parthawk", cfg.DB.DSN)
	// Unset values still get defaults.
	require.Equal(t, 4, cfg.Scan.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := Config{
		Server: ServerConfig{Port: 8080},
		Scan:   ScanConfig{CronSpec: "@every 15m", Workers: 4},
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.Server.Port = 0
	require.ErrorContains(t, bad.Validate(), "server.port")

	bad = base
	bad.Scan.Workers = 0
	require.ErrorContains(t, bad.Validate(), "scan.workers")

	bad = base
	bad.Auth = AuthConfig{Enabled: true}
	require.ErrorContains(t, bad.Validate(), "auth.api_key")

	bad = base
	bad.Headless = HeadlessConfig{Enabled: true, MaxPages: 0}
	require.ErrorContains(t, bad.Validate(), "headless.max_pages")
}
