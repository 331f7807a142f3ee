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

// Package sarif implements the "apmkit sarif" commands.
package sarif

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/apmkit/internal/commands/completion"
	"github.com/tombee/apmkit/internal/commands/shared"
	"github.com/tombee/apmkit/internal/log"
	"github.com/tombee/apmkit/internal/sarif"
)

type filterOptions struct {
	in      string
	out     string
	ignore  []string
	watch   bool
	timeout time.Duration
	compact bool
}

type filterResponse struct {
	shared.JSONResponse
	Input  string      `json:"input"`
	Output string      `json:"output"`
	Stats  sarif.Stats `json:"stats"`
	Kept   int         `json:"kept"`
}

// NewSARIFCommand creates the sarif command with subcommands.
func NewSARIFCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sarif",
		Short: "Work with SARIF static-analysis reports",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newFilterCommand())
	return cmd
}

func newFilterCommand() *cobra.Command {
	var opts filterOptions

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Drop results whose location matches an ignore entry",
		Long: `Remove results from every run of a SARIF report when the URI of their
first location matches an ignore entry.

An entry matches as a path prefix unless it contains glob characters
(* ? [ {), in which case it is matched as a doublestar glob. Results
without a location are kept. Entries from the config file's
sarif.ignore list are added to those given with --ignore.

With --watch the report is filtered again after every change until
interrupted.`,
		Example: `  # Drop findings in vendored and generated code
  apmkit sarif filter --in scan.sarif --out filtered.sarif \
    --ignore vendor/ --ignore '**/*_gen.go'

  # Keep a filtered copy in sync while a scanner rewrites its output
  apmkit sarif filter --in scan.sarif --out filtered.sarif --ignore vendor/ --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.in, "in", "", "Input SARIF report (required)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Output path (default: overwrite --in)")
	cmd.Flags().StringArrayVar(&opts.ignore, "ignore", nil, "Path prefix or glob to drop (repeatable)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-filter whenever the input changes")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", sarif.DefaultTimeout, "Maximum time for one filter pass")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "Write compact JSON")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.RegisterFlagCompletionFunc("in", completion.CompleteSARIFFiles)
	_ = cmd.RegisterFlagCompletionFunc("out", completion.CompleteSARIFFiles)

	return cmd
}

func runFilter(cmd *cobra.Command, opts filterOptions) error {
	ctx := cmd.Context()
	cfg, err := shared.LoadConfig(ctx)
	if err != nil {
		return err
	}
	logger := log.WithComponent(shared.NewLogger(cfg, cmd.ErrOrStderr()), "sarif")

	if opts.out == "" {
		opts.out = opts.in
	}
	if opts.timeout <= 0 {
		return shared.NewInvalidArgsError(fmt.Sprintf("--timeout must be positive, got %v", opts.timeout), nil)
	}

	ignore := append(append([]string{}, cfg.SARIF.Ignore...), opts.ignore...)
	filterOpts := []sarif.Option{sarif.WithTimeout(opts.timeout)}
	if opts.compact {
		filterOpts = append(filterOpts, sarif.WithIndent(""))
	}
	filterer, err := sarif.New(ignore, filterOpts...)
	if err != nil {
		return shared.NewInvalidArgsError("invalid --ignore entry", err)
	}

	if opts.watch {
		return watch(cmd, filterer, opts, logger)
	}

	stats, err := filterer.FilterFile(ctx, opts.in, opts.out)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return shared.NewInvalidArgsError("input report not found", err)
		}
		return shared.NewExecutionError("failed to filter report", err)
	}
	logger.Debug("filtered report",
		"input", opts.in,
		"output", opts.out,
		"results", stats.Results,
		"removed", stats.Removed)

	return report(cmd, opts, stats)
}

func report(cmd *cobra.Command, opts filterOptions, stats sarif.Stats) error {
	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, filterResponse{
			JSONResponse: shared.NewJSONResponse("sarif filter"),
			Input:        opts.in,
			Output:       opts.out,
			Stats:        stats,
			Kept:         stats.Kept(),
		})
	}
	if shared.GetQuiet() {
		return nil
	}
	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf(
		"%s: removed %d of %d results across %d runs",
		opts.out, stats.Removed, stats.Results, stats.Runs)))
	return nil
}

func watch(cmd *cobra.Command, filterer *sarif.Filterer, opts filterOptions, logger *slog.Logger) error {
	err := filterer.Watch(cmd.Context(), opts.in, opts.out, sarif.WatchOptions{
		Logger: logger,
		OnResult: func(stats sarif.Stats, err error) {
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderError(err.Error()))
				return
			}
			_ = report(cmd, opts, stats)
		},
	})
	if err != nil {
		return shared.NewExecutionError("watch failed", err)
	}
	return nil
}
