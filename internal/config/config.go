// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ai.
//
// Settings come from built-in defaults, overridden by an optional TOML
// config file, overridden by environment variables. Command-line flags
// are applied last by the CLI layer.
//
// Configuration file location: ~/.ai/config.toml
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/amachino/command-ai/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ai configuration.
type Config struct {
	// Chat settings sent with every completion request
	Chat ChatConfig `toml:"chat" json:"chat"`

	// API endpoint configuration
	API APIConfig `toml:"api" json:"api"`
}

// ChatConfig contains chat completion parameters.
type ChatConfig struct {
	// Model is the completion model identifier
	Model string `toml:"model" json:"model"`
	// MaxTokens is the completion length cap
	MaxTokens int `toml:"max_tokens" json:"max_tokens"`
	// Temperature is the sampling temperature, valid range 0.0-2.0.
	// Zero is a meaningful (deterministic) setting, not "unset".
	Temperature float64 `toml:"temperature" json:"temperature"`
	// Stream enables token-by-token streaming output
	Stream bool `toml:"stream" json:"stream"`
}

// APIConfig contains API endpoint configuration.
type APIConfig struct {
	// Key is the API credential.
	// SECURITY: Key is sourced from the environment only (OPENAI_API_KEY,
	// optionally via a .env file) and is never read from or written to
	// the config file.
	Key string `toml:"-" json:"-"`
	// BaseURL overrides the API endpoint (for compatible gateways)
	BaseURL string `toml:"base_url" json:"base_url"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Chat: ChatConfig{
			Model:       "gpt-4",
			MaxTokens:   1000,
			Temperature: 1.0,
			Stream:      true,
		},
		API: APIConfig{
			BaseURL: "",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ai configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ai"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ContextPath returns the path to the chat context file.
func ContextPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "context.txt"), nil
}

// HistoryPath returns the path to the line-editor history file.
func HistoryPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}

// LogDir returns the directory where conversation logs are saved.
func LogDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "log"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// EnsureLogDir ensures the conversation log directory exists.
func EnsureLogDir() (string, error) {
	dir, err := LogDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return dir, nil
}

// ensureSecurePermissions checks and fixes permissions on the config file.
// SECURITY: Config files should be 0600 (owner read/write only); base URLs
// may reference internal gateways.
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

// Load loads configuration from the default location.
//
// A missing config file is not an error: defaults apply. A present but
// malformed config file is an error, since silently ignoring an explicit
// config invites confusion.
func Load() (*Config, error) {
	// A .env file in the working directory may supply OPENAI_API_KEY;
	// absence is fine.
	_ = godotenv.Load()

	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if err := LoadTOML(cfg, path); err != nil {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
// Unlike Load, the file must exist.
func LoadFromPath(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := LoadTOML(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file into cfg.
//
// cfg should be pre-filled with defaults: the decoder only touches fields
// present in the file, so absent fields keep their defaults while explicit
// zero values (temperature = 0.0, stream = false) survive.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems; warn only.
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
// SECURITY: Config files are written with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# ai configuration file")
	fmt.Fprintln(&buf, "# The API key is read from the OPENAI_API_KEY environment variable,")
	fmt.Fprintln(&buf, "# never from this file.")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// RELIABILITY: Atomic write with fsync prevents a torn config on crash.
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
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

	if c.Chat.Model == "" {
		errs = append(errs, ValidationError{
			Field:   "chat.model",
			Message: "model must not be empty",
		})
	}

	if c.Chat.MaxTokens < 1 {
		errs = append(errs, ValidationError{
			Field:   "chat.max_tokens",
			Message: fmt.Sprintf("must be a positive integer, got %d", c.Chat.MaxTokens),
		})
	}

	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "chat.temperature",
			Message: fmt.Sprintf("must be between 0.0 and 2.0, got %g", c.Chat.Temperature),
		})
	}

	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   "api.base_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = append(errs, ValidationError{
				Field:   "api.base_url",
				Message: fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills in missing values.
// Temperature and Stream are deliberately absent here: loading decodes
// into a pre-filled Default(), so their zero values are always explicit.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Chat.Model == "" {
		c.Chat.Model = defaults.Chat.Model
	}
	if c.Chat.MaxTokens == 0 {
		c.Chat.MaxTokens = defaults.Chat.MaxTokens
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - OPENAI_API_KEY: the API credential (required to start)
//   - OPENAI_BASE_URL: overrides api.base_url
//   - AI_MODEL: overrides chat.model
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.API.Key = key
	}

	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.API.BaseURL = baseURL
	}

	if model := os.Getenv("AI_MODEL"); model != "" {
		c.Chat.Model = model
	}
}

// HasAPIKey reports whether an API credential is configured.
func (c *Config) HasAPIKey() bool {
	return c.API.Key != ""
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a copy of the configuration. The struct holds no reference
// types, so a value copy is a deep copy.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns a string representation of the config for debugging.
// SECURITY: The API key is excluded from serialization entirely, so it can
// never leak through logs or debug output.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
