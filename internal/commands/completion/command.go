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
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// shells lists the supported shells with the command that loads the
// generated script for the current session.
var shells = []struct {
	name string
	load string
}{
	{"bash", "source <(apmkit completion bash)"},
	{"zsh", "source <(apmkit completion zsh)"},
	{"fish", "apmkit completion fish | source"},
	{"powershell", "apmkit completion powershell | Out-String | Invoke-Expression"},
}

// NewCommand creates the completion command.
func NewCommand() *cobra.Command {
	var noDescriptions bool

	validArgs := make([]string, 0, len(shells))
	for _, s := range shells {
		validArgs = append(validArgs, s.name)
	}

	cmd := &cobra.Command{
		Use:   "completion SHELL",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for apmkit.

Completion covers subcommands and flags, plus values for --git-backend
and --exporter and .sarif files for the sarif commands.

Load it for the current session:
` + loadInstructions() + `
To install it permanently, write the script to your shell's completion
directory, for example:

  apmkit completion bash > ~/.local/share/bash-completion/completions/apmkit
  apmkit completion zsh > "${fpath[1]}/_apmkit"
  apmkit completion fish > ~/.config/fish/completions/apmkit.fish`,
		Annotations: map[string]string{
			"group": "setup",
		},
		DisableFlagsInUseLine: true,
		ValidArgs:             validArgs,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(cmd.Root(), cmd.OutOrStdout(), args[0], !noDescriptions)
		},
	}

	cmd.Flags().BoolVar(&noDescriptions, "no-descriptions", false, "Omit value descriptions from completions")

	return cmd
}

func loadInstructions() string {
	var s string
	for _, sh := range shells {
		s += fmt.Sprintf("  %-11s %s\n", sh.name+":", sh.load)
	}
	return s
}

func generate(root *cobra.Command, w io.Writer, shell string, descriptions bool) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, descriptions)
	case "zsh":
		if descriptions {
			return root.GenZshCompletion(w)
		}
		return root.GenZshCompletionNoDesc(w)
	case "fish":
		return root.GenFishCompletion(w, descriptions)
	case "powershell":
		if descriptions {
			return root.GenPowerShellCompletionWithDesc(w)
		}
		return root.GenPowerShellCompletion(w)
	}
	return fmt.Errorf("unsupported shell %q", shell)
}
