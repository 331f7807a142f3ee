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

package completion

import (
	"github.com/spf13/cobra"
	"github.com/tombee/apmkit/internal/git"
)

// SafeCompletionWrapper wraps a completion function with panic recovery.
// Returns empty completion list on panic or error.
func SafeCompletionWrapper(fn func() ([]string, cobra.ShellCompDirective)) (results []string, directive cobra.ShellCompDirective) {
	results = []string{}
	directive = cobra.ShellCompDirectiveNoFileComp

	defer func() {
		if r := recover(); r != nil {
			results = []string{}
			directive = cobra.ShellCompDirectiveNoFileComp
		}
	}()

	results, directive = fn()
	if results == nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	return results, directive
}

// CompleteGitBackends provides completion for --git-backend flag values.
func CompleteGitBackends(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			git.BackendAuto + "\tgit binary when installed, go-git otherwise",
			git.BackendExec + "\tRun the git binary",
			git.BackendGoGit + "\tRead the repository in-process",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteExporters provides completion for --exporter flag values.
func CompleteExporters(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			"console\tPrint spans to stderr",
			"otlp\tOTLP over gRPC",
			"otlp-http\tOTLP over HTTP",
			"none\tDrop spans",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteSARIFFiles completes paths ending in .sarif or .json.
func CompleteSARIFFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"sarif", "json"}, cobra.ShellCompDirectiveFilterFileExt
}
