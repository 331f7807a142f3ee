// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads apmkit's YAML configuration.
//
// Values are layered, lowest first: built-in defaults, the config file,
// then environment variables. The result is validated before use.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tombee/apmkit/internal/contrib/httptrace"
	"github.com/tombee/apmkit/internal/git"
	"github.com/tombee/apmkit/internal/log"
	"github.com/tombee/apmkit/internal/sarif"
	"github.com/tombee/apmkit/internal/tracing"
	pkgerrors "github.com/tombee/apmkit/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete apmkit configuration.
type Config struct {
	Log     LogConfig        `yaml:"log"`
	Tracing tracing.Config   `yaml:"tracing"`
	HTTP    httptrace.Config `yaml:"http"`
	CI      CIConfig         `yaml:"ci"`
	SARIF   SARIFConfig      `yaml:"sarif"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Environment: APMKIT_LOG_LEVEL
	// Default: info
	Level string `yaml:"level" env:"APMKIT_LOG_LEVEL,overwrite"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format" env:"LOG_FORMAT,overwrite"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source" env:"LOG_SOURCE,overwrite"`
}

// CIConfig configures CI tag extraction.
type CIConfig struct {
	// GitBackend selects how repository metadata is read: auto, exec or go-git.
	// Environment: APMKIT_GIT_BACKEND
	// Default: auto
	GitBackend string `yaml:"git_backend" env:"APMKIT_GIT_BACKEND,overwrite"`

	// HistoryPath is the SQLite database used by "ci tags --record" and
	// "ci history" when no --db flag is given.
	// Environment: APMKIT_CI_HISTORY
	HistoryPath string `yaml:"history_path" env:"APMKIT_CI_HISTORY,overwrite"`
}

// SARIFConfig configures the report filter.
type SARIFConfig struct {
	// Ignore lists path prefixes or globs whose results are removed.
	// Environment: APMKIT_SARIF_IGNORE (comma separated)
	Ignore []string `yaml:"ignore" env:"APMKIT_SARIF_IGNORE,overwrite"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: string(log.FormatJSON),
		},
		Tracing: tracing.DefaultConfig(),
		HTTP:    httptrace.DefaultConfig(),
		CI: CIConfig{
			GitBackend: git.BackendAuto,
		},
	}
}

// Load reads configuration from path (if non-empty) and the process
// environment.
func Load(ctx context.Context, path string) (*Config, error) {
	return LoadWith(ctx, path, envconfig.OsLookuper())
}

// LoadWith is Load with an explicit environment source.
func LoadWith(ctx context.Context, path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, &pkgerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, &pkgerrors.ConfigError{
			Key:    "environment",
			Reason: "failed to read environment overrides",
			Cause:  err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Validate checks every section and reports the first problem as a
// *pkgerrors.ConfigError naming the offending section.
func (c *Config) Validate() error {
	if !log.ValidLevel(c.Log.Level) {
		return invalid("log.level", fmt.Errorf("unknown level %q", c.Log.Level))
	}
	switch log.Format(c.Log.Format) {
	case log.FormatJSON, log.FormatText:
	default:
		return invalid("log.format", fmt.Errorf("unknown format %q (expected json or text)", c.Log.Format))
	}
	if err := c.Tracing.Validate(); err != nil {
		return invalid("tracing", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return invalid("http", err)
	}
	if !git.ValidBackend(c.CI.GitBackend) {
		return invalid("ci.git_backend", fmt.Errorf("unknown backend %q", c.CI.GitBackend))
	}
	if _, err := sarif.NewMatcher(c.SARIF.Ignore); err != nil {
		return invalid("sarif.ignore", err)
	}
	return nil
}

// LoggerConfig converts the log section for log.New.
func (c LogConfig) LoggerConfig() *log.Config {
	cfg := log.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = log.Format(c.Format)
	cfg.AddSource = c.AddSource
	return cfg
}

func invalid(key string, err error) error {
	return &pkgerrors.ConfigError{
		Key:    key,
		Reason: "configuration validation failed",
		Cause:  fmt.Errorf("%w: %w", ErrInvalidConfig, err),
	}
}
