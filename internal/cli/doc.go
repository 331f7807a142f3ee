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

/*
Package cli provides the root command and shared configuration for the apmkit CLI.

This package creates the main Cobra command tree and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

The CLI is organized as:

	apmkit
	├── ci
	│   ├── tags      Extract CI provider and git tags
	│   └── history   List recorded tag sets
	├── trace
	│   └── request   Issue traced requests under one root span
	├── sarif
	│   └── filter    Drop results by location
	├── config        Show, locate and validate configuration
	├── completion    Generate shell completion scripts
	├── version       Show version
	└── help          Show help

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if cmd, err := rootCmd.ExecuteContextC(ctx); err != nil {
	    cli.HandleExitError(cmd.Name(), err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable debug logging
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Path to config file

# Error Handling

Errors are handled centrally to ensure proper exit codes:

  - Exit 0: Success
  - Exit 1: General error
  - Exit 2: Invalid usage
  - Exit 3: Configuration error
*/
package cli
