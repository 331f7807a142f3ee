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

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tombee/apmkit/internal/commands/shared"
	"github.com/tombee/apmkit/internal/config"
	"github.com/tombee/apmkit/internal/tracing"
	"gopkg.in/yaml.v3"
)

type showResponse struct {
	shared.JSONResponse
	Path   string         `json:"path,omitempty"`
	Config map[string]any `json:"config"`
}

type pathResponse struct {
	shared.JSONResponse
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and check configuration",
		Long: `View and check apmkit configuration.

Configuration is read from --config, then APMKIT_CONFIG, then
$XDG_CONFIG_HOME/apmkit/config.yaml. Environment variables override
file values.

Subcommands:
  show     - Display the effective configuration
  path     - Show the config file location
  validate - Check the configuration for errors`,
		Args: cobra.NoArgs,
	}

	show := newConfigShowCommand()
	cmd.AddCommand(show)
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(NewValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = show.RunE

	return cmd
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the effective configuration after defaults, the config file
and environment overrides are merged.

Exporter headers are masked. Use --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Long:  `Display the path of the configuration file that would be loaded.`,
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := shared.LoadConfig(cmd.Context())
	if err != nil {
		return err
	}
	path := config.ResolvePath(shared.GetConfigPath())
	masked := maskSensitiveConfig(cfg)

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		doc, err := toDocument(masked)
		if err != nil {
			return err
		}
		return shared.EmitJSON(out, showResponse{
			JSONResponse: shared.NewJSONResponse("config show"),
			Path:         path,
			Config:       doc,
		})
	}

	if path == "" {
		path = "(defaults)"
	}
	fmt.Fprintf(out, "Configuration: %s\n", path)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out)

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(masked); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := config.ResolvePath(shared.GetConfigPath())
	exists := path != ""
	if !exists {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			return shared.NewExecutionError("failed to determine config path", err)
		}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), pathResponse{
			JSONResponse: shared.NewJSONResponse("config path"),
			Path:         path,
			Exists:       exists,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// toDocument round-trips cfg through YAML so JSON output uses the same
// keys and duration strings as the config file.
func toDocument(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return doc, nil
}

// maskSensitiveConfig returns a copy of cfg with exporter header values
// masked. Headers commonly carry API keys.
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	masked.Tracing.Exporters = make([]tracing.ExporterConfig, len(cfg.Tracing.Exporters))
	for i, exp := range cfg.Tracing.Exporters {
		if len(exp.Headers) > 0 {
			headers := make(map[string]string, len(exp.Headers))
			for k, v := range exp.Headers {
				headers[k] = maskSecret(v)
			}
			exp.Headers = headers
		}
		masked.Tracing.Exporters[i] = exp
	}
	return &masked
}

// maskSecret masks a secret for display
func maskSecret(key string) string {
	if key == "" {
		return ""
	}

	// If it's an environment variable reference, don't mask
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		return key
	}

	// Show first 4 and last 4 characters
	if len(key) <= 8 {
		return "****"
	}

	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
