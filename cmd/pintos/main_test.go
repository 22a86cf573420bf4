package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/infrastructure/config"
)

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyFlags(cfg, "disk", "fs.snap", "0.0.0.0:9000", true))

	assert.Equal(t, "disk", cfg.Filesys.ImportDir)
	assert.Equal(t, "fs.snap", cfg.Filesys.Snapshot)
	assert.True(t, cfg.Filesys.SaveOnHalt)
	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Address())
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyFlagsKeepsConfig(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyFlags(cfg, "", "", "", false))
	assert.Equal(t, config.Default(), cfg)
}

func TestApplyFlagsRejectsBadAddress(t *testing.T) {
	assert.Error(t, applyFlags(config.Default(), "", "", "no-port", false))
}

func TestRunUsage(t *testing.T) {
	assert.Equal(t, 2, run(nil))
	assert.Equal(t, 2, run([]string{"-unknown-flag"}))
	assert.Equal(t, 2, run([]string{"-config", filepath.Join(t.TempDir(), "missing.toml"), "--", "echo"}))
}

func TestRunExitStatus(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	assert.Equal(t, 0, run([]string{"--", "echo", "hi"}))
	assert.Equal(t, 1, run([]string{"--", "no-such-program"}))
	assert.Equal(t, 0, run([]string{"--", "halt"}))
}
