package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxguard/limits"
)

// envMap adapts a map to LookupFunc.
func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, ".claude"), 0755))
	return home
}

func TestDefaults(t *testing.T) {
	home := withHome(t)

	cfg, err := LoadWith(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".claude", "state"), cfg.StateDir)
	assert.False(t, cfg.BlockAtLimit)
	assert.False(t, cfg.ForceSubagent)
	assert.False(t, cfg.SkipTracking)
	assert.Equal(t, limits.DefaultThresholds(), cfg.Thresholds)
	assert.Equal(t, limits.DefaultLargeFile(), cfg.LargeFile)
	assert.Contains(t, cfg.SkipPatterns, "*.pdf")
	assert.Empty(t, cfg.Source)
	assert.NoError(t, cfg.Validate())
}

func TestEnvToggles(t *testing.T) {
	withHome(t)

	cfg, err := LoadWith(envMap(map[string]string{
		EnvBlockAtLimit: "1",
		EnvSubagent:     "yes",
		EnvSkipTracking: "true",
		EnvStateDir:     "/tmp/ctxguard-state",
	}))
	require.NoError(t, err)
	assert.True(t, cfg.BlockAtLimit)
	assert.True(t, cfg.ForceSubagent)
	assert.True(t, cfg.SkipTracking)
	assert.Equal(t, "/tmp/ctxguard-state", cfg.StateDir)
}

func TestSubagentToggleHonorsOffValues(t *testing.T) {
	withHome(t)

	for _, v := range []string{"0", "false", "off"} {
		cfg, err := LoadWith(envMap(map[string]string{EnvSubagent: v}))
		require.NoError(t, err)
		assert.False(t, cfg.ForceSubagent, v)
	}
	cfg, err := LoadWith(envMap(map[string]string{EnvSubagent: "1"}))
	require.NoError(t, err)
	assert.True(t, cfg.ForceSubagent)
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "on", "anything"} {
		assert.True(t, truthy(v), v)
	}
	for _, v := range []string{"", " ", "0", "false", "No", "OFF"} {
		assert.False(t, truthy(v), v)
	}
}

func TestYAMLFile(t *testing.T) {
	home := withHome(t)
	path := filepath.Join(home, ".claude", "ctxguard.yaml")
	content := `
block_at_limit: true
thresholds:
  warn: 120000
skip_patterns:
  - "*.pdf"
  - "*.svg"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadWith(envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.True(t, cfg.BlockAtLimit)
	assert.Equal(t, int64(limits.DefaultSuggestTokens), cfg.Thresholds.Suggest)
	assert.Equal(t, int64(120000), cfg.Thresholds.Warn)
	assert.Equal(t, int64(limits.DefaultBlockTokens), cfg.Thresholds.Block)
	assert.Equal(t, []string{"*.pdf", "*.svg"}, cfg.SkipPatterns)
}

func TestTOMLFileViaEnv(t *testing.T) {
	withHome(t)
	path := filepath.Join(t.TempDir(), "guard.toml")
	content := `
state_dir = "/var/tmp/guard"
pdf_extract_command = "pdftotext"

[large_file]
warn_bytes = 50000
block_bytes = 250000
max_read_tokens = 20000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadWith(envMap(map[string]string{EnvConfigFile: path}))
	require.NoError(t, err)
	assert.Equal(t, "/var/tmp/guard", cfg.StateDir)
	assert.Equal(t, "pdftotext", cfg.PDFExtractCommand)
	assert.Equal(t, limits.LargeFile{WarnBytes: 50000, BlockBytes: 250000, MaxReadTokens: 20000}, cfg.LargeFile)
}

func TestEnvOverridesFile(t *testing.T) {
	home := withHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude", "ctxguard.yaml"),
		[]byte("block_at_limit: true\n"), 0644))

	cfg, err := LoadWith(envMap(map[string]string{EnvBlockAtLimit: "0"}))
	require.NoError(t, err)
	assert.False(t, cfg.BlockAtLimit)
}

func TestBrokenFileFallsBack(t *testing.T) {
	home := withHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude", "ctxguard.yaml"),
		[]byte("thresholds: [oops"), 0644))

	cfg, err := LoadWith(envMap(map[string]string{EnvBlockAtLimit: "1"}))
	assert.Error(t, err)
	assert.True(t, cfg.BlockAtLimit, "environment still applies when the file is broken")
	assert.Equal(t, limits.DefaultThresholds(), cfg.Thresholds)
}

func TestInvalidFileThresholdsRejected(t *testing.T) {
	home := withHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude", "ctxguard.yaml"),
		[]byte("block_at_limit: true\nthresholds:\n  warn: 10\n"), 0644))

	cfg, err := LoadWith(envMap(nil))
	assert.Error(t, err)
	assert.False(t, cfg.BlockAtLimit, "an invalid file is ignored as a whole")
	assert.Equal(t, limits.DefaultThresholds(), cfg.Thresholds)
}

func TestEnvThresholds(t *testing.T) {
	withHome(t)

	cfg, err := LoadWith(envMap(map[string]string{
		EnvSuggestTokens: "50_000",
		EnvWarnTokens:    "60000",
		EnvBlockTokens:   "70000",
	}))
	require.NoError(t, err)
	assert.Equal(t, limits.Thresholds{Suggest: 50000, Warn: 60000, Block: 70000}, cfg.Thresholds)

	cfg, err = LoadWith(envMap(map[string]string{EnvWarnTokens: "1"}))
	assert.Error(t, err)
	assert.Equal(t, limits.DefaultThresholds(), cfg.Thresholds)
}

func TestEnvFile(t *testing.T) {
	home := withHome(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".claude", "ctxguard.env"),
		[]byte("CLAUDE_BLOCK_AT_LIMIT=1\nCTXGUARD_STATE_DIR=~/guard-state\n"), 0644))

	cfg, err := LoadWith(envMap(nil))
	require.NoError(t, err)
	assert.True(t, cfg.BlockAtLimit)
	assert.Equal(t, filepath.Join(home, "guard-state"), cfg.StateDir)

	// The process environment beats the env file.
	cfg, err = LoadWith(envMap(map[string]string{EnvBlockAtLimit: "off"}))
	require.NoError(t, err)
	assert.False(t, cfg.BlockAtLimit)
}

func TestExplicitEnvFileMissing(t *testing.T) {
	withHome(t)
	_, err := LoadWith(envMap(map[string]string{EnvEnvFile: "/definitely/not/here.env"}))
	assert.Error(t, err)
}

func TestSetupLogging(t *testing.T) {
	cfg := Default()
	cfg.StateDir = t.TempDir()
	cfg.Debug = true

	closeLog := cfg.SetupLogging()
	defer closeLog()

	_, err := os.Stat(filepath.Join(cfg.StateDir, LogFileName))
	assert.NoError(t, err)

	cfg.Debug = false
	cfg.SetupLogging()()
}
