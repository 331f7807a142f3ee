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

package ci

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tombee/apmkit/internal/ci"
	"github.com/tombee/apmkit/internal/ci/history"
	"github.com/tombee/apmkit/internal/cli/format"
	"github.com/tombee/apmkit/internal/commands/completion"
	"github.com/tombee/apmkit/internal/commands/shared"
	"github.com/tombee/apmkit/internal/contrib/sqltrace"
	"github.com/tombee/apmkit/internal/git"
	"github.com/tombee/apmkit/internal/log"
)

type tagsOptions struct {
	envFile    string
	dir        string
	gitBackend string
	record     bool
	db         string
}

type tagsResponse struct {
	shared.JSONResponse
	Provider   string  `json:"provider,omitempty"`
	Tags       ci.Tags `json:"tags"`
	RecordedID int64   `json:"recorded_id,omitempty"`
}

func newTagsCommand() *cobra.Command {
	var opts tagsOptions

	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Extract CI tags for the current environment",
		Long: `Extract CI provider, pipeline and git tags.

Provider values win over repository metadata read from --dir, and
DD_GIT_* variables override both. Output is a table on a terminal and
a JSON envelope with --json or when piped.`,
		Example: `  # Tags for the current job
  apmkit ci tags

  # Reproduce a job from a saved environment and record the result
  apmkit ci tags --env-file job.env --record --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTags(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Read the environment from a dotenv file instead of the process")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Repository directory for git metadata")
	cmd.Flags().StringVar(&opts.gitBackend, "git-backend", "", "Git backend: auto, exec or go-git (default from config)")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Record the tag set in the history database")
	cmd.Flags().StringVar(&opts.db, "db", "", "History database path (default from config)")
	_ = cmd.RegisterFlagCompletionFunc("git-backend", completion.CompleteGitBackends)
	_ = cmd.MarkFlagDirname("dir")

	return cmd
}

func runTags(cmd *cobra.Command, opts tagsOptions) error {
	ctx := cmd.Context()
	cfg, err := shared.LoadConfig(ctx)
	if err != nil {
		return err
	}
	logger := log.WithComponent(shared.NewLogger(cfg, cmd.ErrOrStderr()), "ci")

	env := ci.EnvFromOS()
	if opts.envFile != "" {
		if env, err = ci.EnvFromFile(opts.envFile); err != nil {
			return shared.NewInvalidArgsError("failed to read --env-file", err)
		}
	}

	backend := opts.gitBackend
	if backend == "" {
		backend = cfg.CI.GitBackend
	}
	extractor, err := git.New(backend, logger)
	if err != nil {
		return shared.NewInvalidArgsError("invalid --git-backend", err)
	}

	provider, stop, err := shared.StartTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stop()

	tags := ci.NewExtractor(extractor,
		ci.WithLogger(logger),
		ci.WithMetrics(provider.MetricsCollector()),
	).Tags(ctx, env, opts.dir)

	var recordedID int64
	if opts.record {
		path, err := historyPath(opts.db, cfg)
		if err != nil {
			return shared.NewExecutionError("failed to resolve history database", err)
		}
		store, err := history.Open(ctx, path,
			sqltrace.WithTracerProvider(provider.TracerProvider()),
			sqltrace.WithMetrics(provider.MetricsCollector()),
			sqltrace.WithLogger(logger),
		)
		if err != nil {
			return shared.NewExecutionError("failed to open history database", err)
		}
		defer store.Close()

		if recordedID, err = store.Record(ctx, tags); err != nil {
			return shared.NewExecutionError("failed to record tags", err)
		}
		logger.Debug("recorded tags", "id", recordedID, "path", path)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() || !format.IsTerminal(out) {
		return shared.EmitJSON(out, tagsResponse{
			JSONResponse: shared.NewJSONResponse("ci tags"),
			Provider:     tags.Provider(),
			Tags:         tags,
			RecordedID:   recordedID,
		})
	}

	if tags.Provider() == "" {
		fmt.Fprintln(out, shared.RenderWarn("no CI provider detected"))
	}
	fmt.Fprintln(out, format.KeyValueTable("TAG", "VALUE", tags))
	if recordedID > 0 {
		fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("recorded as #%d", recordedID)))
	}
	return nil
}
