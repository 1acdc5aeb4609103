// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "PROTONET_CONFIG"

// Config is the protonet CLI configuration.
type Config struct {
	// BaseURL is the Protonet box root address. "api/v1/" is appended
	// by the client when missing.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// RequestTimeout bounds the wait for response headers, as a Go
	// duration string. Bodies (downloads) are not limited. "0" disables
	// the timeout. Default: 30s.
	RequestTimeout string `yaml:"request_timeout" json:"request_timeout"`

	// SessionFile stores the sealed token between invocations.
	// Default: ${XDG_CONFIG_HOME}/protonet/session.json
	SessionFile string `yaml:"session_file" json:"session_file"`

	// IdentityFile holds the age identity the session token is sealed
	// to. Default: ${XDG_CONFIG_HOME}/protonet/identity
	IdentityFile string `yaml:"identity_file" json:"identity_file"`

	// LogLevel is one of debug, info, warn, error. Default: warn.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Box selects an entry of Boxes.
	Box string `yaml:"box,omitempty" json:"box,omitempty"`

	// Boxes holds per-box overrides.
	Boxes map[string]BoxOverrides `yaml:"boxes,omitempty" json:"boxes,omitempty"`
}

// BoxOverrides replaces top-level values for one named box. Empty
// fields keep the top-level value.
type BoxOverrides struct {
	BaseURL        string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	RequestTimeout string `yaml:"request_timeout,omitempty" json:"request_timeout,omitempty"`
	SessionFile    string `yaml:"session_file,omitempty" json:"session_file,omitempty"`
	IdentityFile   string `yaml:"identity_file,omitempty" json:"identity_file,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		RequestTimeout: "30s",
		SessionFile:    "${XDG_CONFIG_HOME}/protonet/session.json",
		IdentityFile:   "${XDG_CONFIG_HOME}/protonet/identity",
		LogLevel:       "warn",
	}
}

// Load reads the file named by PROTONET_CONFIG, or returns the
// expanded defaults when it is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile reads path over the defaults, applies the selected box and
// expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	if err := cfg.applyBox(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return json.Unmarshal(jsonc.ToJSON(data), c)
	default:
		return yaml.Unmarshal(data, c)
	}
}

// applyBox merges the selected box's overrides into the top level.
func (c *Config) applyBox() error {
	if c.Box == "" {
		return nil
	}
	overrides, ok := c.Boxes[c.Box]
	if !ok {
		return fmt.Errorf("box %q is not defined (have: %s)", c.Box, strings.Join(c.BoxNames(), ", "))
	}
	if overrides.BaseURL != "" {
		c.BaseURL = overrides.BaseURL
	}
	if overrides.RequestTimeout != "" {
		c.RequestTimeout = overrides.RequestTimeout
	}
	if overrides.SessionFile != "" {
		c.SessionFile = overrides.SessionFile
	}
	if overrides.IdentityFile != "" {
		c.IdentityFile = overrides.IdentityFile
	}
	return nil
}

// SelectBox switches to the named box and re-applies its overrides.
// Used by the --box flag.
func (c *Config) SelectBox(name string) error {
	c.Box = name
	if err := c.applyBox(); err != nil {
		return err
	}
	c.expandVariables()
	return nil
}

// BoxNames returns the configured box names, sorted.
func (c *Config) BoxNames() []string {
	names := make([]string, 0, len(c.Boxes))
	for name := range c.Boxes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            homeDirectory(),
		"XDG_CONFIG_HOME": configHome(),
	}
	c.SessionFile = expandVars(c.SessionFile, vars)
	c.IdentityFile = expandVars(c.IdentityFile, vars)
}

func homeDirectory() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.TempDir()
}

func configHome() string {
	if directory := os.Getenv("XDG_CONFIG_HOME"); directory != "" {
		return directory
	}
	return filepath.Join(homeDirectory(), ".config")
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Timeout parses RequestTimeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.RequestTimeout == "" || c.RequestTimeout == "0" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("request_timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("request_timeout must not be negative, got %s", c.RequestTimeout)
	}
	return timeout, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return level, nil
}

// Validate checks the configuration. BaseURL may be empty: commands
// that talk to a box fall back to the URL stored in the session file.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseURL != "" {
		parsed, err := url.Parse(c.BaseURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("base_url %q must be an absolute http or https URL", c.BaseURL))
		}
	}
	if _, err := c.Timeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.SessionFile == "" {
		errs = append(errs, fmt.Errorf("session_file is required"))
	}
	if c.IdentityFile == "" {
		errs = append(errs, fmt.Errorf("identity_file is required"))
	}

	return errors.Join(errs...)
}
