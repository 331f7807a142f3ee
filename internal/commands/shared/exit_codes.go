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
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/apmkit/pkg/errors"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitFailed      = 1
	ExitInvalidArgs = 2
	ExitConfigError = 3
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates an error for failed operations
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewInvalidArgsError creates an error for bad flags or arguments
func NewInvalidArgsError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidArgs,
		Message: msg,
		Cause:   cause,
	}
}

// NewConfigError creates an error for unusable configuration
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitConfigError,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	var cfgErr *pkgerrors.ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	return ExitFailed
}

// HandleExitError reports err for command and exits with the matching
// code. With --json the report is a failed envelope on stdout.
func HandleExitError(command string, err error) {
	if err == nil {
		return
	}
	if GetJSON() {
		_ = EmitJSONError(os.Stdout, command, []JSONError{jsonErrorFor(err)})
	} else {
		printError(os.Stderr, err)
	}
	os.Exit(ExitCode(err))
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, "Error:", err.Error())
	if suggestion := suggestionFor(err); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}

func jsonErrorFor(err error) JSONError {
	return JSONError{
		Code:       ErrorCodeFor(err),
		Message:    err.Error(),
		Suggestion: suggestionFor(err),
	}
}

// suggestionFor returns the suggestion of the first UserVisibleError in
// err's chain, if any.
func suggestionFor(err error) string {
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				return userErr.Suggestion()
			}
			return ""
		}
		err = errors.Unwrap(err)
	}
	return ""
}
