// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// forgechat.
//
// Configuration comes from ~/.forgechat/config.toml with built-in
// defaults for every field and FORGECHAT_* environment overrides applied
// last.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/forgechat/internal/engine"
	"github.com/jeranaias/forgechat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete forgechat configuration.
type Config struct {
	Version string `toml:"version"`

	// Server configuration (local inference server)
	Server ServerConfig `toml:"server"`

	// Generation configuration (sampling and timeouts)
	Generation GenerationConfig `toml:"generation"`

	// Auth configuration
	Auth AuthConfig `toml:"auth"`

	// Logging configuration (transcripts and telemetry)
	Logging LoggingConfig `toml:"logging"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ServerConfig contains inference server connection settings.
type ServerConfig struct {
	// URL is the inference server base URL
	URL string `toml:"url"`
	// Model is the model name sent with every request
	Model string `toml:"model"`
	// RequestTimeoutSecs bounds non-streaming requests (health, info)
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
}

// GenerationConfig contains sampling parameters and the stream timeout.
type GenerationConfig struct {
	// StreamTimeoutSecs is the longest tolerated gap between fragments
	StreamTimeoutSecs int `toml:"stream_timeout_secs"`
	// MaxNewTokens caps fresh generations
	MaxNewTokens int `toml:"max_new_tokens"`
	// ContinueTokens caps continuations
	ContinueTokens int `toml:"continue_tokens"`
	// DoSample enables randomness; false means greedy search
	DoSample bool `toml:"do_sample"`
	// TopK limits sampling to the K most probable tokens (0 = disabled)
	TopK int `toml:"top_k"`
	// TopP is the nucleus sampling probability mass, 0..1
	TopP float64 `toml:"top_p"`
	// Temperature cools the distribution, 0..1
	Temperature float64 `toml:"temperature"`
	// Seed forces reproducible generation when non-zero
	Seed int64 `toml:"seed"`
	// TemplatePath seeds new conversations from a few-shot TOML template
	TemplatePath string `toml:"template_path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	// Enabled turns the credentials check on. When the credentials file
	// is missing, callers run anonymously instead of being rejected.
	Enabled bool `toml:"enabled"`
	// CredentialsFile is the alternating username/credential file path
	// (empty = ~/.forgechat/credentials.txt)
	CredentialsFile string `toml:"credentials_file"`
}

// LoggingConfig contains transcript and telemetry settings.
type LoggingConfig struct {
	// Dir is the root for per-identity CSV transcripts
	// (empty = ~/.forgechat/logs)
	Dir string `toml:"dir"`
	// TelemetryEnabled turns the SQLite generation ledger on
	TelemetryEnabled bool `toml:"telemetry_enabled"`
	// TelemetryPath is the ledger database path
	// (empty = ~/.forgechat/telemetry.db)
	TelemetryPath string `toml:"telemetry_path"`
}

// UIConfig contains UI settings.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto"
	Theme string `toml:"theme"`
	// ShowLatency displays per-request latency after settlement
	ShowLatency bool `toml:"show_latency"`
	// CompactMode uses a more compact layout
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Server: ServerConfig{
			URL:                "http://127.0.0.1:8750",
			Model:              "llama2-7b-chat",
			RequestTimeoutSecs: 30,
		},

		Generation: GenerationConfig{
			StreamTimeoutSecs: 20,
			MaxNewTokens:      512,
			ContinueTokens:    128,
			DoSample:          true,
			TopK:              50,
			TopP:              0.90,
			Temperature:       0.8,
			Seed:              0, // auto
		},

		Auth: AuthConfig{
			Enabled: false,
		},

		Logging: LoggingConfig{
			TelemetryEnabled: true,
		},

		UI: UIConfig{
			Theme:       "dark",
			ShowLatency: true,
			CompactMode: false,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the forgechat configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".forgechat"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o700)
}

// ensureSecurePermissions fixes overly permissive modes on config files,
// which may carry credentials file locations.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		if err := os.Chmod(path, 0o600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD AND SAVE
// =============================================================================

// Load loads configuration from the config file, falling back to
// defaults when the file is absent. Environment overrides apply last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		return cfg, nil
	}
	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with
// defaults, environment overrides, and validation applied.
func LoadFromPath(path string) (*Config, error) {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.SetDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the default config path atomically.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file with owner-only
// permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# forgechat configuration file\n")
	buf.WriteString("# Generated by forgechat - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// DEFAULTS AND VALIDATION
// =============================================================================

// SetDefaults fills in zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Server.URL == "" {
		c.Server.URL = defaults.Server.URL
	}
	if c.Server.Model == "" {
		c.Server.Model = defaults.Server.Model
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = defaults.Server.RequestTimeoutSecs
	}
	if c.Generation.StreamTimeoutSecs == 0 {
		c.Generation.StreamTimeoutSecs = defaults.Generation.StreamTimeoutSecs
	}
	if c.Generation.MaxNewTokens == 0 {
		c.Generation.MaxNewTokens = defaults.Generation.MaxNewTokens
	}
	if c.Generation.ContinueTokens == 0 {
		c.Generation.ContinueTokens = defaults.Generation.ContinueTokens
	}
	if c.Generation.TopK == 0 {
		c.Generation.TopK = defaults.Generation.TopK
	}
	if c.Generation.TopP == 0 {
		c.Generation.TopP = defaults.Generation.TopP
	}
	if c.Generation.Temperature == 0 {
		c.Generation.Temperature = defaults.Generation.Temperature
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.URL != "" {
		if u, err := url.Parse(c.Server.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "server.url",
				Message: fmt.Sprintf("invalid URL %q", c.Server.URL),
			})
		}
	}

	if c.Generation.StreamTimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "generation.stream_timeout_secs",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Generation.StreamTimeoutSecs),
		})
	}
	if c.Generation.MaxNewTokens < 1 {
		errs = append(errs, ValidationError{
			Field:   "generation.max_new_tokens",
			Message: "must be positive",
		})
	}
	if c.Generation.TopK < 0 {
		errs = append(errs, ValidationError{
			Field:   "generation.top_k",
			Message: "must be >= 0",
		})
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		errs = append(errs, ValidationError{
			Field:   "generation.top_p",
			Message: "must be in [0, 1]",
		})
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 1 {
		errs = append(errs, ValidationError{
			Field:   "generation.temperature",
			Message: "must be in [0, 1]",
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if c.UI.Theme != "" && !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme %q, must be one of: dark, light, auto", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - FORGECHAT_URL: overrides server.url
//   - FORGECHAT_MODEL: overrides server.model
//   - FORGECHAT_STREAM_TIMEOUT_SECS: overrides generation.stream_timeout_secs
//   - FORGECHAT_SEED: overrides generation.seed
//   - FORGECHAT_AUTH: "1"/"true" enables auth, "0"/"false" disables it
//   - FORGECHAT_CREDENTIALS_FILE: overrides auth.credentials_file
//   - FORGECHAT_LOG_DIR: overrides logging.dir
//   - FORGECHAT_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("FORGECHAT_URL"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("FORGECHAT_MODEL"); v != "" {
		c.Server.Model = v
	}
	if v := os.Getenv("FORGECHAT_STREAM_TIMEOUT_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Generation.StreamTimeoutSecs = secs
		}
	}
	if v := os.Getenv("FORGECHAT_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Generation.Seed = seed
		}
	}
	if v := os.Getenv("FORGECHAT_AUTH"); v != "" {
		c.Auth.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("FORGECHAT_CREDENTIALS_FILE"); v != "" {
		c.Auth.CredentialsFile = v
	}
	if v := os.Getenv("FORGECHAT_LOG_DIR"); v != "" {
		c.Logging.Dir = v
	}
	if v := os.Getenv("FORGECHAT_THEME"); v != "" {
		c.UI.Theme = v
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// StreamTimeout returns the fragment gap timeout as a duration.
func (c *Config) StreamTimeout() time.Duration {
	return time.Duration(c.Generation.StreamTimeoutSecs) * time.Second
}

// RequestTimeout returns the non-streaming request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSecs) * time.Second
}

// Sampling returns the configured sampling parameters as engine options.
// A zero seed means the engine picks.
func (c *Config) Sampling() engine.Options {
	opts := engine.Options{
		MaxNewTokens: c.Generation.MaxNewTokens,
		DoSample:     c.Generation.DoSample,
		TopK:         c.Generation.TopK,
		TopP:         c.Generation.TopP,
		Temperature:  c.Generation.Temperature,
	}
	if c.Generation.Seed != 0 {
		seed := c.Generation.Seed
		opts.Seed = &seed
	}
	return opts
}

// CredentialsPath returns the credentials file path, defaulting under
// the config directory.
func (c *Config) CredentialsPath() (string, error) {
	if c.Auth.CredentialsFile != "" {
		return c.Auth.CredentialsFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "credentials.txt"), nil
}

// LogDir returns the transcript root, defaulting under the config
// directory.
func (c *Config) LogDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// TelemetryPath returns the ledger database path, defaulting under the
// config directory.
func (c *Config) TelemetryPath() (string, error) {
	if c.Logging.TelemetryPath != "" {
		return c.Logging.TelemetryPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "telemetry.db"), nil
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. A config installed with SetGlobal beforehand is kept as-is.
// Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		globalConfigMu.Lock()
		defer globalConfigMu.Unlock()
		if globalConfig != nil {
			return
		}
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
