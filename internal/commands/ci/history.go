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
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/apmkit/internal/ci/history"
	"github.com/tombee/apmkit/internal/cli/format"
	"github.com/tombee/apmkit/internal/commands/shared"
	"github.com/tombee/apmkit/internal/git"
)

type historyEntry struct {
	ID         int64             `json:"id"`
	RecordedAt time.Time         `json:"recorded_at"`
	Provider   string            `json:"provider,omitempty"`
	Tags       map[string]string `json:"tags"`
}

type historyResponse struct {
	shared.JSONResponse
	Entries []historyEntry `json:"entries"`
}

func newHistoryCommand() *cobra.Command {
	var (
		db    string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded tag sets",
		Long:  `List tag sets recorded with 'apmkit ci tags --record', newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return shared.NewInvalidArgsError(fmt.Sprintf("--limit must be positive, got %d", limit), nil)
			}
			return runHistory(cmd, db, limit)
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "History database path (default from config)")
	cmd.Flags().IntVar(&limit, "limit", history.DefaultListLimit, "Maximum number of entries")

	return cmd
}

func runHistory(cmd *cobra.Command, db string, limit int) error {
	ctx := cmd.Context()
	cfg, err := shared.LoadConfig(ctx)
	if err != nil {
		return err
	}

	path, err := historyPath(db, cfg)
	if err != nil {
		return shared.NewExecutionError("failed to resolve history database", err)
	}
	store, err := history.Open(ctx, path)
	if err != nil {
		return shared.NewExecutionError("failed to open history database", err)
	}
	defer store.Close()

	entries, err := store.List(ctx, limit)
	if err != nil {
		return shared.NewExecutionError("failed to list history", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		resp := historyResponse{
			JSONResponse: shared.NewJSONResponse("ci history"),
			Entries:      make([]historyEntry, 0, len(entries)),
		}
		for _, e := range entries {
			resp.Entries = append(resp.Entries, historyEntry{
				ID:         e.ID,
				RecordedAt: e.RecordedAt.UTC(),
				Provider:   e.Provider,
				Tags:       e.Tags,
			})
		}
		return shared.EmitJSON(out, resp)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, shared.Muted.Render("no recorded tag sets"))
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		ref := e.Tags[git.Branch]
		if tag := e.Tags[git.Tag]; tag != "" {
			ref = "tag " + tag
		}
		provider := e.Provider
		if provider == "" {
			provider = "-"
		}
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.RecordedAt.Local().Format(time.DateTime),
			provider,
			ref,
			shortSHA(e.Tags[git.CommitSHA]),
		})
	}
	fmt.Fprintln(out, format.Table([]string{"ID", "RECORDED", "PROVIDER", "REF", "COMMIT"}, rows))
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}
