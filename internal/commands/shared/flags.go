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

package shared

// GlobalFlags holds the root command's persistent flags.
type GlobalFlags struct {
	Verbose bool
	Quiet   bool
	JSON    bool
	Config  string
}

// BuildInfo identifies the running binary. main sets it from ldflags.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var (
	globals GlobalFlags
	build   = BuildInfo{Version: "dev", Commit: "unknown", Date: "unknown"}
)

// RegisterFlagPointers returns the addresses the root command binds
// --verbose, --quiet, --json and --config to.
func RegisterFlagPointers() (verbose, quiet, json *bool, config *string) {
	return &globals.Verbose, &globals.Quiet, &globals.JSON, &globals.Config
}

func GetVerbose() bool { return globals.Verbose }
func GetQuiet() bool { return globals.Quiet }
func GetJSON() bool { return globals.JSON }
func GetConfigPath() string { return globals.Config }

// SetVersion records build information for the version command.
func SetVersion(version, commit, date string) {
	build = BuildInfo{Version: version, Commit: commit, Date: date}
}

// GetVersion returns the version, commit and build date.
func GetVersion() (string, string, string) {
	return build.Version, build.Commit, build.Date
}

// SetFlagsForTest sets --json and --config for the duration of a test.
// Call the returned func to restore the previous values.
func SetFlagsForTest(json bool, config string) func() {
	saved := globals
	globals.JSON, globals.Config = json, config
	return func() { globals = saved }
}
