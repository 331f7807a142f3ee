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

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/apmkit/internal/commands/shared"
)

// SetVersion records build information. main calls it before
// NewRootCommand so --version reports the injected values.
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// GetVersion returns the version, commit and build date.
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// NewRootCommand returns the apmkit root command with its persistent
// flags bound. Subcommands are added by main.
func NewRootCommand() *cobra.Command {
	version, commit, date := shared.GetVersion()

	cmd := &cobra.Command{
		Use:   "apmkit",
		Short: "Trace propagation and CI visibility tooling",
		Long: `apmkit carries trace context across asynchronous work, HTTP calls and
SQL interactions, reports the CI environment a test run executes in, and
filters static-analysis reports.

Run 'apmkit ci tags' to see what the current environment reports.
Run 'apmkit trace request URL' to send traced requests.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		// main prints errors so it can choose the exit code.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("apmkit {{.Version}}\n")

	bindGlobalFlags(cmd.PersistentFlags())
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}

func bindGlobalFlags(fs *pflag.FlagSet) {
	verbose, quiet, json, config := shared.RegisterFlagPointers()
	fs.BoolVarP(verbose, "verbose", "v", false, "Log at debug level")
	fs.BoolVarP(quiet, "quiet", "q", false, "Log errors only and suppress status lines")
	fs.BoolVar(json, "json", false, "Write machine-readable JSON to stdout")
	fs.StringVar(config, "config", "", "Config file (default $APMKIT_CONFIG or ~/.config/apmkit/config.yaml)")
}

// HandleExitError reports err from the command at cmdPath and exits with
// the matching code.
func HandleExitError(cmdPath string, err error) {
	shared.HandleExitError(cmdPath, err)
}
