package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Kernel config
	assert.Equal(t, 1024, cfg.Kernel.PageLimit)
	assert.Equal(t, 256, cfg.Kernel.HandshakeLimit)
	assert.Equal(t, 64, cfg.Kernel.ExecLimit)
	assert.Equal(t, 64, cfg.Kernel.ThreadLimit)

	// Filesys config
	assert.Equal(t, []string{"*"}, cfg.Filesys.Include)
	assert.Empty(t, cfg.Filesys.Snapshot)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Server config
	assert.False(t, cfg.Server.Enabled)
	assert.Equal(t, "127.0.0.1:8040", cfg.Server.Address())

	// Rate limit config
	assert.Equal(t, 50, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default when no env vars set
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8040", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"KERNEL_PAGE_LIMIT":                 "16",
		"KERNEL_HANDSHAKE_LIMIT":            "4",
		"KERNEL_EXEC_LIMIT":                 "2",
		"PINTOS_KERNEL_KERNEL_THREAD_LIMIT": "8",
		"FS_INCLUDE":                        "*.txt,docs/**",
		"FS_SNAPSHOT":                       "/tmp/fs.snap",
		"FS_SAVE_ON_HALT":                   "true",
		"LOG_LEVEL":                         "debug",
		"LOG_DEV":                           "true",
		"ADMIN_ENABLED":                     "true",
		"ADMIN_PORT":                        "9000",
		"RATE_LIMIT_ENABLED":                "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Kernel.PageLimit)
	assert.Equal(t, 4, cfg.Kernel.HandshakeLimit)
	assert.Equal(t, 8, cfg.Kernel.ThreadLimit)
	assert.Equal(t, 2, cfg.Kernel.ExecLimit)

	assert.Equal(t, []string{"*.txt", "docs/**"}, cfg.Filesys.Include)
	assert.Equal(t, "/tmp/fs.snap", cfg.Filesys.Snapshot)
	assert.True(t, cfg.Filesys.SaveOnHalt)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "unset values keep their defaults")
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadInvalidEnvironmentValue(t *testing.T) {
	t.Setenv("KERNEL_PAGE_LIMIT", "lots")

	_, err := Load("")
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, 1024, cfg.Kernel.PageLimit)
}

func TestLoadFiles(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "pintos.toml",
			content: `
[kernel]
page_limit = 32

[filesys]
import_dir = "disk"
include = ["*.c"]

[server]
enabled = true
port = "7000"
`,
		},
		{
			name: "yaml",
			file: "pintos.yaml",
			content: `
kernel:
  page_limit: 32
filesys:
  import_dir: disk
  include: ["*.c"]
server:
  enabled: true
  port: "7000"
`,
		},
		{
			name: "json",
			file: "pintos.json",
			content: `{
  "kernel": {"page_limit": 32},
  "filesys": {"import_dir": "disk", "include": ["*.c"]},
  "server": {"enabled": true, "port": "7000"}
}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, 32, cfg.Kernel.PageLimit)
			assert.Equal(t, 256, cfg.Kernel.HandshakeLimit, "defaults survive partial files")
			assert.Equal(t, "disk", cfg.Filesys.ImportDir)
			assert.Equal(t, []string{"*.c"}, cfg.Filesys.Include)
			assert.True(t, cfg.Server.Enabled)
			assert.Equal(t, "7000", cfg.Server.Port)
			assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		})
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pintos.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"warn\"\n"), 0o644))
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)

	ini := filepath.Join(dir, "pintos.ini")
	require.NoError(t, os.WriteFile(ini, []byte("x=1"), 0o644))
	_, err = Load(ini)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative limit", func(c *Config) { c.Kernel.ThreadLimit = -1 }},
		{"negative exec limit", func(c *Config) { c.Kernel.ExecLimit = -1 }},
		{"save without snapshot", func(c *Config) { c.Filesys.SaveOnHalt = true }},
		{"zero rate", func(c *Config) { c.RateLimit.RequestsPerSecond = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
