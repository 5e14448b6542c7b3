package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "serve:\n  base_domain: docs.example.com\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.DocsPort)
	assert.Equal(t, "docs.example.com", cfg.Serve.BaseDomain)
	assert.Equal(t, "venv.tar.gz", cfg.Storage.EnvArchiveName)
	assert.Equal(t, 2, cfg.Build.Workers)
	assert.Equal(t, 30*time.Minute, cfg.Build.LeaseTTL)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
http:
  docs_port: 9000
  webhook_port: 9001
  admin_port: 9002
build:
  workers: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.HTTP.DocsPort)
	assert.Equal(t, 8, cfg.Build.Workers)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DOCSHOST_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("DOCSHOST_BUILD_WORKERS", "5")

	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Build.Workers)
}

func TestValidateRejectsBadPorts(t *testing.T) {
	cfg := Default()
	cfg.HTTP.DocsPort = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.HTTP.AdminPort = 70000
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingRequired(t *testing.T) {
	cfg := Default()
	cfg.Storage.RootDir = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Serve.BaseDomain = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Build.Workers = 0
	assert.Error(t, cfg.Validate())
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	data, err := WriteDefault()
	require.NoError(t, err)
	path := writeConfig(t, string(data))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Queue.Stream, cfg.Queue.Stream)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
