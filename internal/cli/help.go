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

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/apmkit/internal/commands/shared"
)

// CommandDoc describes a command for "help --json". Subcommands are
// described in full so one call returns the whole tree below a command.
type CommandDoc struct {
	Path        string       `json:"path"`
	Name        string       `json:"name"`
	Short       string       `json:"short"`
	Long        string       `json:"long,omitempty"`
	Usage       string       `json:"usage"`
	Example     string       `json:"example,omitempty"`
	Aliases     []string     `json:"aliases,omitempty"`
	Runnable    bool         `json:"runnable"`
	Flags       []FlagDoc    `json:"flags,omitempty"`
	Subcommands []CommandDoc `json:"subcommands,omitempty"`
}

// FlagDoc describes one flag.
type FlagDoc struct {
	Name       string `json:"name"`
	Shorthand  string `json:"shorthand,omitempty"`
	Type       string `json:"type"`
	Usage      string `json:"usage"`
	Default    string `json:"default,omitempty"`
	Required   bool   `json:"required"`
	Repeatable bool   `json:"repeatable,omitempty"`
}

// HelpResponse is the "help --json" envelope. Commands is set for the
// root, Target for a named command.
type HelpResponse struct {
	shared.JSONResponse
	Commands    []CommandDoc `json:"commands,omitempty"`
	Target      *CommandDoc  `json:"target,omitempty"`
	GlobalFlags []FlagDoc    `json:"global_flags,omitempty"`
}

// NewHelpCommand replaces cobra's help command with one that can also
// describe the command tree as JSON.
func NewHelpCommand(root *cobra.Command) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Show help for apmkit or one of its commands.

With --json the command tree, flags, flag types and required flags are
written as a JSON document for scripts and editors.`,
		Example: `  apmkit help ci tags
  apmkit help --json
  apmkit help sarif filter --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := root
			if len(args) > 0 {
				found, _, err := root.Find(args)
				if err != nil || found == root {
					return shared.NewInvalidArgsError(fmt.Sprintf("unknown command %q", strings.Join(args, " ")), err)
				}
				target = found
			}
			if !shared.GetJSON() && !jsonOutput {
				return target.Help()
			}
			return writeHelpJSON(cmd.OutOrStdout(), root, target)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}

func writeHelpJSON(w io.Writer, root, target *cobra.Command) error {
	resp := HelpResponse{
		JSONResponse: shared.NewJSONResponse("help"),
		GlobalFlags:  describeFlags(root.PersistentFlags()),
	}
	if target == root {
		for _, c := range visibleChildren(root) {
			resp.Commands = append(resp.Commands, describe(root, c))
		}
	} else {
		doc := describe(root, target)
		resp.Command = "help " + doc.Path
		resp.Target = &doc
	}
	return shared.EmitJSON(w, resp)
}

func describe(root, cmd *cobra.Command) CommandDoc {
	doc := CommandDoc{
		Path:     strings.TrimPrefix(cmd.CommandPath(), root.Name()+" "),
		Name:     cmd.Name(),
		Short:    cmd.Short,
		Long:     cmd.Long,
		Usage:    cmd.UseLine(),
		Example:  cmd.Example,
		Aliases:  cmd.Aliases,
		Runnable: cmd.Runnable(),
		Flags:    describeFlags(cmd.LocalNonPersistentFlags()),
	}
	for _, c := range visibleChildren(cmd) {
		doc.Subcommands = append(doc.Subcommands, describe(root, c))
	}
	return doc
}

func visibleChildren(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() {
			out = append(out, c)
		}
	}
	return out
}

func describeFlags(fs *pflag.FlagSet) []FlagDoc {
	var docs []FlagDoc
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		_, required := f.Annotations[cobra.BashCompOneRequiredFlag]
		typ := f.Value.Type()
		docs = append(docs, FlagDoc{
			Name:       f.Name,
			Shorthand:  f.Shorthand,
			Type:       typ,
			Usage:      f.Usage,
			Default:    f.DefValue,
			Required:   required,
			Repeatable: strings.HasSuffix(typ, "Array") || strings.HasSuffix(typ, "Slice"),
		})
	})
	return docs
}
