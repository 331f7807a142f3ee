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
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(completions []string) []string {
	out := make([]string, 0, len(completions))
	for _, c := range completions {
		value, _, _ := strings.Cut(c, "\t")
		out = append(out, value)
	}
	return out
}

func TestCompleteGitBackends(t *testing.T) {
	completions, directive := CompleteGitBackends(nil, nil, "")
	assert.Equal(t, []string{"auto", "exec", "go-git"}, values(completions))
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestCompleteExporters(t *testing.T) {
	completions, directive := CompleteExporters(nil, nil, "")
	assert.Equal(t, []string{"console", "otlp", "otlp-http", "none"}, values(completions))
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
}

func TestCompleteSARIFFiles(t *testing.T) {
	exts, directive := CompleteSARIFFiles(nil, nil, "")
	assert.Equal(t, []string{"sarif", "json"}, exts)
	assert.Equal(t, cobra.ShellCompDirectiveFilterFileExt, directive)
}

func TestSafeCompletionWrapper(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		results, directive := SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
			panic("boom")
		})
		assert.Empty(t, results)
		assert.NotNil(t, results)
		assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)
	})

	t.Run("nil becomes empty", func(t *testing.T) {
		results, _ := SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		})
		assert.Equal(t, []string{}, results)
	})
}

func TestCompletionCommand(t *testing.T) {
	root := &cobra.Command{Use: "apmkit"}
	root.AddCommand(NewCommand())

	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			var buf bytes.Buffer
			root.SetOut(&buf)
			root.SetArgs([]string{"completion", shell})
			require.NoError(t, root.Execute())
			assert.Contains(t, buf.String(), "apmkit")
		})
	}

	root.SetArgs([]string{"completion", "tcsh"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestCompletionCommand_NoDescriptions(t *testing.T) {
	root := &cobra.Command{Use: "apmkit"}
	root.AddCommand(NewCommand())

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"completion", "zsh", "--no-descriptions"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "__completeNoDesc")
}
