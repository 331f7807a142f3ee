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

package git

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Backend names accepted by New.
const (
	BackendAuto  = "auto"
	BackendExec  = "exec"
	BackendGoGit = "go-git"
)

// Extractor reads repository metadata for the repository containing dir.
type Extractor interface {
	// Metadata returns tag values keyed by the constants in this package.
	// On partial failure it returns what it could read alongside the error.
	Metadata(ctx context.Context, dir string) (map[string]string, error)

	// WorkspacePath returns the repository's top-level directory.
	WorkspacePath(ctx context.Context, dir string) (string, error)
}

// New returns the extractor for backend. The auto backend, also selected
// by an empty name, prefers the git binary and falls back to go-git when
// it is not on PATH.
func New(backend string, logger *slog.Logger) (Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch backend {
	case "", BackendAuto:
		if _, err := exec.LookPath("git"); err != nil {
			logger.Debug("git binary not found, using go-git backend")
			return &GoGitExtractor{}, nil
		}
		return &ExecExtractor{Logger: logger}, nil
	case BackendExec:
		return &ExecExtractor{Logger: logger}, nil
	case BackendGoGit:
		return &GoGitExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown git backend %q (expected %s, %s or %s)", backend, BackendAuto, BackendExec, BackendGoGit)
	}
}

// ValidBackend reports whether name is accepted by New.
func ValidBackend(name string) bool {
	switch name {
	case "", BackendAuto, BackendExec, BackendGoGit:
		return true
	}
	return false
}
