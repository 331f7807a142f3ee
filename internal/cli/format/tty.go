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

package format

import (
	"io"
	"os"

	"golang.org/x/term"
)

// fdWriter is satisfied by *os.File.
type fdWriter interface {
	Fd() uintptr
}

// IsTTY determines if output should use terminal formatting.
// Returns true if stdout is a TTY with color support.
// Returns false if stdout is piped, NO_COLOR is set, or TERM is "dumb" or empty.
func IsTTY() bool {
	return IsTerminal(os.Stdout)
}

// IsTerminal reports whether w is a color-capable terminal. Writers that
// are not files, such as buffers in tests, are never terminals.
func IsTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	termEnv := os.Getenv("TERM")
	if termEnv == "dumb" || termEnv == "" {
		return false
	}

	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
