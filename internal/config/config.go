// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for nexus.
package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/nexusai/nexus-tui/internal/logging"
	"github.com/nexusai/nexus-tui/internal/model"
	"github.com/nexusai/nexus-tui/internal/util"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "NEXUS_"

// EnvConfigPath overrides the location of the config file.
const EnvConfigPath = "NEXUS_CONFIG"

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the main configuration structure for nexus.
type Config struct {
	// Backend holds the remote backend connection settings
	Backend BackendConfig `toml:"backend" json:"backend" envPrefix:"BACKEND_"`

	// Auth holds demo login defaults and token persistence
	Auth AuthConfig `toml:"auth" json:"auth" envPrefix:"AUTH_"`

	// Chat holds conversation defaults
	Chat ChatConfig `toml:"chat" json:"chat" envPrefix:"CHAT_"`

	// Log holds logger settings
	Log LogConfig `toml:"log" json:"log" envPrefix:"LOG_"`

	// UI holds presentation settings
	UI UIConfig `toml:"ui" json:"ui" envPrefix:"UI_"`
}

// BackendConfig contains settings for the remote chat backend.
type BackendConfig struct {
	// URL is the backend root; requests go to <URL>/api/...
	URL string `toml:"url" json:"url" env:"URL"`

	// TimeoutSecs bounds every request. Sends wait on the model, so this is generous.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" env:"TIMEOUT_SECS"`

	// RequestsPerSecond limits outgoing requests. Zero disables the limiter.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" env:"REQUESTS_PER_SECOND"`

	// Burst is the limiter bucket size.
	Burst int `toml:"burst" json:"burst" env:"BURST"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	// DemoEmail is used by /login when no email is given
	DemoEmail string `toml:"demo_email" json:"demo_email" env:"DEMO_EMAIL"`

	// DemoName is the display name sent with a demo login
	DemoName string `toml:"demo_name" json:"demo_name" env:"DEMO_NAME"`

	// TokenFile is where the access token is kept between runs.
	// Empty disables persistence.
	TokenFile string `toml:"token_file" json:"token_file" env:"TOKEN_FILE"`
}

// ChatConfig contains conversation defaults.
type ChatConfig struct {
	// DefaultModel is the model targeted before the user picks one
	DefaultModel string `toml:"default_model" json:"default_model" env:"DEFAULT_MODEL"`

	// StarterPrompts are offered while a timeline is empty
	StarterPrompts []string `toml:"starter_prompts" json:"starter_prompts" env:"STARTER_PROMPTS" envSeparator:"|"`

	// NewSessionTitle is the title requested for new sessions
	NewSessionTitle string `toml:"new_session_title" json:"new_session_title" env:"NEW_SESSION_TITLE"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `toml:"level" json:"level" env:"LEVEL"`

	// File receives log output. The TUI owns stdout/stderr.
	File string `toml:"file" json:"file" env:"FILE"`
}

// UIConfig contains presentation settings.
type UIConfig struct {
	// Theme is "auto", "dark" or "light"
	Theme string `toml:"theme" json:"theme" env:"THEME"`

	// ShowTimestamps prints message times in the timeline
	ShowTimestamps bool `toml:"show_timestamps" json:"show_timestamps" env:"SHOW_TIMESTAMPS"`

	// ExportDir is where exports are written; empty means the working directory
	ExportDir string `toml:"export_dir" json:"export_dir" env:"EXPORT_DIR"`
}

// DefaultStarterPrompts are shown on an empty timeline.
var DefaultStarterPrompts = []string{
	"Explain quantum computing in simple terms",
	"Write a Python function for sorting",
	"Help me debug my React component",
	"Summarize the latest AI research trends",
}

// Valid themes.
var validThemes = map[string]bool{"auto": true, "dark": true, "light": true}

// Default returns a Config with sensible default values.
func Default() *Config {
	dir, err := ConfigDir()
	if err != nil {
		dir = ".nexus"
	}
	prompts := make([]string, len(DefaultStarterPrompts))
	copy(prompts, DefaultStarterPrompts)

	return &Config{
		Backend: BackendConfig{
			URL:               "http://localhost:8000",
			TimeoutSecs:       120,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Auth: AuthConfig{
			DemoEmail: "demo@example.com",
			DemoName:  "Demo User",
			TokenFile: filepath.Join(dir, "token"),
		},
		Chat: ChatConfig{
			DefaultModel:    model.DefaultModelID,
			StarterPrompts:  prompts,
			NewSessionTitle: model.DefaultSessionTitle,
		},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(dir, "nexus.log"),
		},
		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the nexus configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".nexus"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
// NEXUS_CONFIG takes precedence over ~/.nexus/config.toml.
func ConfigPathTOML() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions checks and fixes permissions on config files.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// LoadFromPath loads configuration from a specific TOML file path.
// A missing file is not an error.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := fillDefaults(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return fillDefaults(cfg)
}

// fillDefaults restores defaults for fields a partial file left empty.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Backend.URL == "" {
		cfg.Backend.URL = defaults.Backend.URL
	}
	cfg.Backend.URL = strings.TrimRight(cfg.Backend.URL, "/")
	if cfg.Backend.TimeoutSecs == 0 {
		cfg.Backend.TimeoutSecs = defaults.Backend.TimeoutSecs
	}
	if cfg.Backend.RequestsPerSecond > 0 && cfg.Backend.Burst == 0 {
		cfg.Backend.Burst = defaults.Backend.Burst
	}

	if cfg.Chat.DefaultModel == "" {
		cfg.Chat.DefaultModel = defaults.Chat.DefaultModel
	}
	if cfg.Chat.NewSessionTitle == "" {
		cfg.Chat.NewSessionTitle = defaults.Chat.NewSessionTitle
	}
	if cfg.Chat.StarterPrompts == nil {
		cfg.Chat.StarterPrompts = defaults.Chat.StarterPrompts
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# nexus configuration file")
	fmt.Fprintln(&buf, "# Generated by nexus - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

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

	if u, err := url.Parse(c.Backend.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, ValidationError{
			Field:   "backend.url",
			Message: fmt.Sprintf("must be an http or https URL, got %q", c.Backend.URL),
		})
	}
	if c.Backend.TimeoutSecs < 1 || c.Backend.TimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "backend.timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 3600, got %d", c.Backend.TimeoutSecs),
		})
	}
	if c.Backend.RequestsPerSecond < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.requests_per_second",
			Message: "must not be negative",
		})
	}
	if c.Backend.Burst < 0 {
		errs = append(errs, ValidationError{
			Field:   "backend.burst",
			Message: "must not be negative",
		})
	}

	if strings.TrimSpace(c.Chat.DefaultModel) == "" {
		errs = append(errs, ValidationError{
			Field:   "chat.default_model",
			Message: "must not be empty",
		})
	}
	if len(c.Chat.StarterPrompts) > 9 {
		errs = append(errs, ValidationError{
			Field:   "chat.starter_prompts",
			Message: fmt.Sprintf("at most 9 prompts are supported, got %d", len(c.Chat.StarterPrompts)),
		})
	}
	for i, p := range c.Chat.StarterPrompts {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("chat.starter_prompts[%d]", i),
				Message: "must not be empty",
			})
		}
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: err.Error(),
		})
	}

	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("must be auto, dark or light, got %q", c.UI.Theme),
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

// ApplyEnvOverrides applies NEXUS_* environment variables to the config.
//
// Variables are named after the section and key, for example:
//   - NEXUS_BACKEND_URL: overrides backend.url
//   - NEXUS_BACKEND_TIMEOUT_SECS: overrides backend.timeout_secs
//   - NEXUS_AUTH_TOKEN_FILE: overrides auth.token_file
//   - NEXUS_CHAT_DEFAULT_MODEL: overrides chat.default_model
//   - NEXUS_CHAT_STARTER_PROMPTS: "|"-separated list
//   - NEXUS_LOG_LEVEL: overrides log.level
//
// Unset variables leave the current value alone.
func (c *Config) ApplyEnvOverrides() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

// Timeout returns the backend request timeout.
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSecs) * time.Second
}
