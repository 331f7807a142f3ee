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

package errors

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError represents invalid user input, such as a malformed flag
// value or a config field outside its allowed range.
type ValidationError struct {
	// Field identifies which input field failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Hint provides actionable guidance for fixing the error
	Hint string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// IsUserVisible implements UserVisibleError.
func (e *ValidationError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *ValidationError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *ValidationError) Suggestion() string { return e.Hint }

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "file", "provider", "run")
	Resource string

	// ID is the identifier that was not found
	ID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "tracing.sampling.rate")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Key != "" {
		msg = fmt.Sprintf("config error at %s", e.Key)
	}
	msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents operation timeouts.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "git command", "span export")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s operation timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *TimeoutError) ErrorType() string { return "timeout" }

// IsRetryable implements ErrorClassifier.
func (e *TimeoutError) IsRetryable() bool { return true }

// GitNotFoundError is returned when the git executable cannot be located.
// Callers treat it as "no repository metadata" rather than a failure.
type GitNotFoundError struct {
	// Path is the executable name or path that was looked up
	Path string

	// Cause is the lookup error
	Cause error
}

// Error implements the error interface.
func (e *GitNotFoundError) Error() string {
	return fmt.Sprintf("git executable not found: %s", e.Path)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *GitNotFoundError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *GitNotFoundError) ErrorType() string { return "git_not_found" }

// IsRetryable implements ErrorClassifier.
func (e *GitNotFoundError) IsRetryable() bool { return false }

// GitCommandError is returned when a git invocation exits with a non-zero code.
type GitCommandError struct {
	// Args are the git arguments, without the executable
	Args []string

	// ExitCode is the process exit code
	ExitCode int

	// Stderr is the trimmed standard error output
	Stderr string

	// Cause is the underlying exec error
	Cause error
}

// Error implements the error interface.
func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git %s exited with code %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Stderr)
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *GitCommandError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *GitCommandError) ErrorType() string { return "git_command" }

// IsRetryable implements ErrorClassifier.
func (e *GitCommandError) IsRetryable() bool { return false }

var (
	_ UserVisibleError = (*ValidationError)(nil)
	_ ErrorClassifier  = (*TimeoutError)(nil)
	_ ErrorClassifier  = (*GitNotFoundError)(nil)
	_ ErrorClassifier  = (*GitCommandError)(nil)
)
