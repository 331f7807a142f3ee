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

import (
	"errors"
	"io/fs"
)

// Error codes for structured JSON output
const (
	// Input errors (E001-E099)
	ErrorCodeInvalidInput = "E001" // Invalid flag or argument
	ErrorCodeFileNotFound = "E002" // Input file not found

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E201" // Config failed to load or validate

	// Execution errors (E400-E499)
	ErrorCodeExecutionFailed = "E401" // Operation failed
)

// ErrorCodeFor maps an error to its JSON error code.
func ErrorCodeFor(err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrorCodeFileNotFound
	}
	switch ExitCode(err) {
	case ExitInvalidArgs:
		return ErrorCodeInvalidInput
	case ExitConfigError:
		return ErrorCodeInvalidConfig
	default:
		return ErrorCodeExecutionFailed
	}
}
