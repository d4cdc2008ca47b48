package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "configs/kpis.yaml", cfg.Engine.KPIFile)
	assert.Equal(t, 4, cfg.Engine.Concurrency)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Server.RateLimit.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(*Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log output", func(c *Config) { c.Logging.Output = "syslog" }, true},
		{"empty kpi file", func(c *Config) { c.Engine.KPIFile = "" }, true},
		{"zero concurrency", func(c *Config) { c.Engine.Concurrency = 0 }, true},
		{"negative read timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, true},
		{"empty data dir", func(c *Config) { c.Paths.DataDir = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
engine:
  kpi_file: /etc/fac/kpis.yaml
  concurrency: 8
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := loadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/etc/fac/kpis.yaml", cfg.Engine.KPIFile)
	assert.Equal(t, 8, cfg.Engine.Concurrency)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Absent keys keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "reports", cfg.Paths.OutputDir)
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := loadFromFile(path)
	assert.Error(t, err)
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.resolvePaths()

	assert.True(t, filepath.IsAbs(cfg.Paths.DataDir))
	assert.True(t, filepath.IsAbs(cfg.Paths.OutputDir))
	assert.True(t, filepath.IsAbs(cfg.Engine.KPIFile))
	assert.True(t, filepath.IsAbs(cfg.Logging.FilePath))

	// Already-absolute paths stay untouched.
	cfg.Paths.DataDir = "/srv/fac/data"
	cfg.resolvePaths()
	assert.Equal(t, "/srv/fac/data", cfg.Paths.DataDir)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "reports")
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Paths.DataDir = filepath.Join(dir, "data")

	require.NoError(t, cfg.EnsureDirectories())

	assert.DirExists(t, cfg.Paths.OutputDir)
	assert.DirExists(t, cfg.Paths.LogsDir)
	// Input directory is never created on the operator's behalf.
	assert.NoDirExists(t, cfg.Paths.DataDir)
}
