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

// Package ci implements the "apmkit ci" commands.
package ci

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tombee/apmkit/internal/config"
)

// NewCICommand creates the ci command with subcommands.
func NewCICommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ci",
		Short: "Inspect CI environment tags",
		Long: `Detect the CI provider from the environment and report the tags a
test-visibility span would carry: pipeline, job, workspace and git
metadata, plus runtime facets.

Subcommands:
  tags    - Extract tags for the current environment
  history - List previously recorded tag sets`,
		Args: cobra.NoArgs,
	}

	cmd.AddCommand(newTagsCommand())
	cmd.AddCommand(newHistoryCommand())

	return cmd
}

// historyPath picks the history database: the flag, then the config,
// then history.db in the config directory. The parent directory is
// created.
func historyPath(flag string, cfg *config.Config) (string, error) {
	path := flag
	if path == "" {
		path = cfg.CI.HistoryPath
	}
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(dir, "history.db")
	}
	if path == ":memory:" {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	return path, nil
}
