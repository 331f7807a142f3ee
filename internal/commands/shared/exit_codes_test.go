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
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/tombee/apmkit/pkg/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("boom"), ExitFailed},
		{"invalid args", NewInvalidArgsError("bad flag", nil), ExitInvalidArgs},
		{"wrapped exit error", fmt.Errorf("running: %w", NewConfigError("bad", nil)), ExitConfigError},
		{"config error", &pkgerrors.ConfigError{Key: "log.level", Reason: "bad"}, ExitConfigError},
		{"execution error", NewExecutionError("failed", errors.New("cause")), ExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	cause := errors.New("disk full")
	err := NewExecutionError("failed to write report", cause)
	assert.Equal(t, "failed to write report: disk full", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "no cause", NewExecutionError("no cause", nil).Error())
}

func TestPrintError_Suggestion(t *testing.T) {
	var buf bytes.Buffer
	err := fmt.Errorf("loading: %w", &pkgerrors.ValidationError{
		Field:   "--limit",
		Message: "must be positive",
		Hint:    "Pass a value greater than zero",
	})
	printError(&buf, err)

	out := buf.String()
	assert.Contains(t, out, "Error: loading: validation failed on --limit: must be positive")
	assert.Contains(t, out, "Suggestion: Pass a value greater than zero")
}

func TestPrintError_NoSuggestion(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New("plain"))
	assert.Equal(t, "Error: plain\n", buf.String())
}

func TestErrorCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid args", NewInvalidArgsError("bad flag", nil), ErrorCodeInvalidInput},
		{"missing file", NewInvalidArgsError("input report not found", fs.ErrNotExist), ErrorCodeFileNotFound},
		{"config", &pkgerrors.ConfigError{Key: "ci.git_backend", Reason: "bad"}, ErrorCodeInvalidConfig},
		{"wrapped config", NewConfigError("bad", nil), ErrorCodeInvalidConfig},
		{"execution", NewExecutionError("bad", nil), ErrorCodeExecutionFailed},
		{"plain", errors.New("boom"), ErrorCodeExecutionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeFor(tt.err))
		})
	}
}

func TestJSONErrorFor(t *testing.T) {
	err := NewInvalidArgsError("bad limit", &pkgerrors.ValidationError{
		Field:   "--limit",
		Message: "must be positive",
		Hint:    "Pass a value greater than zero",
	})

	got := jsonErrorFor(err)
	assert.Equal(t, ErrorCodeInvalidInput, got.Code)
	assert.Equal(t, err.Error(), got.Message)
	assert.Equal(t, "Pass a value greater than zero", got.Suggestion)
}
