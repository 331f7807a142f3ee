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
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tombee/apmkit/internal/commands/shared"
	"github.com/tombee/apmkit/internal/config"
	pkgerrors "github.com/tombee/apmkit/pkg/errors"
)

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Path     string   `json:"path,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type validateResponse struct {
	shared.JSONResponse
	ValidationResult
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validate the effective configuration.

Checks performed:
  - YAML syntax and structure
  - Log level and format
  - Tracing sampling and exporter settings
  - HTTP client timeouts and retry backoff
  - Git backend name and SARIF ignore patterns

With --strict, warnings are treated as errors.`,
		Example: `  # Validate configuration
  apmkit config validate

  # Validate with warnings as errors
  apmkit config validate --strict --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, strict bool) error {
	path := config.ResolvePath(shared.GetConfigPath())
	result := ValidationResult{Valid: true, Path: path}

	cfg, err := config.Load(cmd.Context(), path)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, describe(err))
	} else {
		result.Warnings = warnings(cfg)
	}
	if strict && len(result.Warnings) > 0 {
		result.Valid = false
	}

	if shared.GetJSON() {
		resp := validateResponse{
			JSONResponse:     shared.NewJSONResponse("config validate"),
			ValidationResult: result,
		}
		resp.Success = result.Valid
		if err := shared.EmitJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	} else {
		printResult(cmd, result)
	}

	if !result.Valid {
		return shared.NewConfigError("configuration is invalid", err)
	}
	return nil
}

func describe(err error) string {
	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) {
		if cfgErr.Cause != nil {
			return fmt.Sprintf("%s: %v", cfgErr.Key, cfgErr.Cause)
		}
		return fmt.Sprintf("%s: %s", cfgErr.Key, cfgErr.Reason)
	}
	return err.Error()
}

// warnings reports settings that load but are unlikely to be intended.
func warnings(cfg *config.Config) []string {
	var out []string
	if cfg.Tracing.Enabled && len(cfg.Tracing.Exporters) == 0 {
		out = append(out, "tracing is enabled but no exporters are configured; spans will be dropped")
	}
	if !cfg.Tracing.Enabled && len(cfg.Tracing.Exporters) > 0 {
		out = append(out, "exporters are configured but tracing is disabled")
	}
	if cfg.Tracing.Sampling.Enabled && cfg.Tracing.Sampling.Rate == 0 {
		out = append(out, "sampling rate is 0; no traces will be recorded")
	}
	if cfg.HTTP.AllowNonIdempotentRetry && cfg.HTTP.RetryAttempts > 0 {
		out = append(out, "http retries are enabled for non-idempotent methods")
	}
	return out
}

func printResult(cmd *cobra.Command, result ValidationResult) {
	out := cmd.OutOrStdout()
	for _, e := range result.Errors {
		fmt.Fprintln(out, shared.RenderError(e))
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(out, shared.RenderWarn(w))
	}
	if result.Valid {
		fmt.Fprintln(out, shared.RenderOK("configuration is valid"))
	}
}
