// Package config resolves ctxguard settings from defaults, an optional config
// file, an optional env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ctxguard/limits"
	"ctxguard/scanner"
)

// Environment variables read by Load. Toggles are off when unset or set to
// "", "0", "false", "no" or "off".
const (
	EnvBlockAtLimit  = "CLAUDE_BLOCK_AT_LIMIT"
	// EnvSubagent forces subagent mode. Hook scripts that only test for a
	// non-empty value treat CLAUDE_SUBAGENT=0 as set; ctxguard does not.
	EnvSubagent      = "CLAUDE_SUBAGENT"
	EnvSkipTracking  = "CLAUDE_SKIP_CONTEXT_TRACKING"
	EnvStateDir      = "CTXGUARD_STATE_DIR"
	EnvConfigFile    = "CTXGUARD_CONFIG"
	EnvEnvFile       = "CTXGUARD_ENV_FILE"
	EnvDebug         = "CTXGUARD_DEBUG"
	EnvSuggestTokens = "CTXGUARD_SUGGEST_TOKENS"
	EnvWarnTokens    = "CTXGUARD_WARN_TOKENS"
	EnvBlockTokens   = "CTXGUARD_BLOCK_TOKENS"
)

// DefaultPDFExtractCommand is suggested when a direct PDF read is denied.
const DefaultPDFExtractCommand = "python ~/.claude/scripts/pdf_extract.py"

// Config holds every tunable. Values are resolved once per process and then
// passed around by value.
type Config struct {
	StateDir     string `yaml:"state_dir" toml:"state_dir"`
	BlockAtLimit bool   `yaml:"block_at_limit" toml:"block_at_limit"`

	// Subagent overrides come from the environment only.
	ForceSubagent bool `yaml:"-" toml:"-"`
	SkipTracking  bool `yaml:"-" toml:"-"`

	Thresholds        limits.Thresholds `yaml:"thresholds" toml:"thresholds"`
	LargeFile         limits.LargeFile  `yaml:"large_file" toml:"large_file"`
	SkipPatterns      []string          `yaml:"skip_patterns" toml:"skip_patterns"`
	SkipFile          string            `yaml:"skip_file" toml:"skip_file"`
	PDFExtractCommand string            `yaml:"pdf_extract_command" toml:"pdf_extract_command"`
	Debug             bool              `yaml:"debug" toml:"debug"`

	// Source is the config file that was applied, if any.
	Source string `yaml:"-" toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		StateDir:          filepath.Join(claudeDir(), "state"),
		Thresholds:        limits.DefaultThresholds(),
		LargeFile:         limits.DefaultLargeFile(),
		SkipPatterns:      append([]string{}, scanner.DefaultSkipPatterns...),
		SkipFile:          filepath.Join(claudeDir(), "ctxguard.ignore"),
		PDFExtractCommand: DefaultPDFExtractCommand,
	}
}

// Validate checks thresholds and limits.
func (c Config) Validate() error {
	if c.StateDir == "" {
		return errors.New("state_dir must not be empty")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}
	if c.LargeFile.WarnBytes <= 0 || c.LargeFile.BlockBytes <= c.LargeFile.WarnBytes {
		return fmt.Errorf("large_file: block_bytes (%d) must exceed warn_bytes (%d) > 0",
			c.LargeFile.BlockBytes, c.LargeFile.WarnBytes)
	}
	if c.LargeFile.MaxReadTokens <= 0 {
		return fmt.Errorf("large_file: max_read_tokens must be > 0, got %d", c.LargeFile.MaxReadTokens)
	}
	return nil
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// Load resolves the configuration from the process environment.
func Load() (Config, error) {
	return LoadWith(os.LookupEnv)
}

// LoadWith resolves the configuration using lookup for environment access.
// The returned Config is always usable: when the config file is broken the
// error is returned alongside a config built without it.
func LoadWith(lookup LookupFunc) (Config, error) {
	cfg := Default()
	var errs []error

	if path := configFile(lookup); path != "" {
		fileCfg, err := applyFile(cfg, path)
		switch {
		case err != nil:
			errs = append(errs, err)
		case fileCfg.Validate() != nil:
			errs = append(errs, fmt.Errorf("%s: %w", path, fileCfg.Validate()))
		default:
			cfg = fileCfg
			cfg.Source = path
		}
	}

	envFile, err := readEnvFile(lookup)
	if err != nil {
		errs = append(errs, err)
	}
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := envFile[key]
		return v, ok
	}

	applyEnv(&cfg, get)
	if err := cfg.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("environment thresholds ignored: %w", err))
		cfg.Thresholds = limits.DefaultThresholds()
	}

	cfg.StateDir = scanner.ExpandHome(cfg.StateDir)
	cfg.SkipFile = scanner.ExpandHome(cfg.SkipFile)
	return cfg, errors.Join(errs...)
}

func applyEnv(cfg *Config, get LookupFunc) {
	if v, ok := get(EnvBlockAtLimit); ok {
		cfg.BlockAtLimit = truthy(v)
	}
	if v, ok := get(EnvSubagent); ok {
		cfg.ForceSubagent = truthy(v)
	}
	if v, ok := get(EnvSkipTracking); ok {
		cfg.SkipTracking = truthy(v)
	}
	if v, ok := get(EnvDebug); ok {
		cfg.Debug = truthy(v)
	}
	if v, ok := get(EnvStateDir); ok && v != "" {
		cfg.StateDir = v
	}
	if n, ok := intEnv(get, EnvSuggestTokens); ok {
		cfg.Thresholds.Suggest = n
	}
	if n, ok := intEnv(get, EnvWarnTokens); ok {
		cfg.Thresholds.Warn = n
	}
	if n, ok := intEnv(get, EnvBlockTokens); ok {
		cfg.Thresholds.Block = n
	}
}

// truthy treats any non-empty value as set, except the usual spellings of off.
func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

func intEnv(get LookupFunc, key string) (int64, bool) {
	v, ok := get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(v), "_", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// configFile picks the explicit CTXGUARD_CONFIG path, else the first of
// ctxguard.yaml, ctxguard.yml, ctxguard.toml under ~/.claude that exists.
func configFile(lookup LookupFunc) string {
	if v, ok := lookup(EnvConfigFile); ok && v != "" {
		return scanner.ExpandHome(v)
	}
	for _, name := range []string{"ctxguard.yaml", "ctxguard.yml", "ctxguard.toml"} {
		path := filepath.Join(claudeDir(), name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// applyFile decodes path over a copy of base, so unset keys keep base values.
func applyFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := base
	cfg.SkipPatterns = append([]string{}, base.SkipPatterns...)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return base, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return base, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

func readEnvFile(lookup LookupFunc) (map[string]string, error) {
	path, explicit := lookup(EnvEnvFile)
	if !explicit || path == "" {
		path = filepath.Join(claudeDir(), "ctxguard.env")
	}
	path = scanner.ExpandHome(path)
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return nil, fmt.Errorf("env file %s: %w", path, err)
		}
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", path, err)
	}
	return values, nil
}

func claudeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}
