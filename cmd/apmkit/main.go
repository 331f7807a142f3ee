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

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tombee/apmkit/internal/cli"
	cicmd "github.com/tombee/apmkit/internal/commands/ci"
	"github.com/tombee/apmkit/internal/commands/completion"
	"github.com/tombee/apmkit/internal/commands/config"
	sarifcmd "github.com/tombee/apmkit/internal/commands/sarif"
	tracecmd "github.com/tombee/apmkit/internal/commands/trace"
	versioncmd "github.com/tombee/apmkit/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// CI visibility
	rootCmd.AddCommand(cicmd.NewCICommand())

	// Tracing
	rootCmd.AddCommand(tracecmd.NewTraceCommand())

	// Reports
	rootCmd.AddCommand(sarifcmd.NewSARIFCommand())

	// Configuration and setup
	rootCmd.AddCommand(config.NewConfigCommand())
	rootCmd.AddCommand(completion.NewCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd, err := rootCmd.ExecuteContextC(ctx)
	stop()
	if err != nil {
		cli.HandleExitError(commandName(cmd), err)
	}
}

// commandName is the executed command path without the binary name, as
// used in JSON envelopes.
func commandName(cmd *cobra.Command) string {
	if cmd == nil {
		return ""
	}
	path := cmd.CommandPath()
	if root := cmd.Root().Name(); strings.HasPrefix(path, root+" ") {
		return strings.TrimPrefix(path, root+" ")
	}
	return path
}
