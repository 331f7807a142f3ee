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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/tombee/apmkit/internal/log"
	pkgerrors "github.com/tombee/apmkit/pkg/errors"
)

// DefaultCommandTimeout bounds each git invocation.
const DefaultCommandTimeout = 5 * time.Second

// logFormat separates the fields of "git log" with NUL bytes so that the
// commit message, which comes last, may contain anything.
const logFormat = "%an%x00%ae%x00%aI%x00%cn%x00%ce%x00%cI%x00%B"

// ExecExtractor reads metadata by running the git binary.
type ExecExtractor struct {
	// Path is the git executable. Defaults to "git" looked up on PATH.
	Path string

	// Timeout bounds each command. Defaults to DefaultCommandTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Metadata runs one git command per field group. A missing executable
// aborts immediately; other failures are collected and returned together
// with whatever was read.
func (e *ExecExtractor) Metadata(ctx context.Context, dir string) (map[string]string, error) {
	tags := make(map[string]string)
	var errs []error

	collect := func(args ...string) (string, bool) {
		out, err := e.run(ctx, dir, args...)
		if err != nil {
			errs = append(errs, err)
			return "", false
		}
		return out, true
	}

	if url, ok := collect("ls-remote", "--get-url"); ok {
		tags[RepositoryURL] = url
	} else {
		var nf *pkgerrors.GitNotFoundError
		if errors.As(errs[0], &nf) {
			return tags, nf
		}
	}

	if sha, ok := collect("rev-parse", "HEAD"); ok {
		tags[CommitSHA] = sha
	}
	if branch, ok := collect("rev-parse", "--abbrev-ref", "HEAD"); ok && branch != "HEAD" {
		tags[Branch] = branch
	}
	if out, ok := collect("log", "-1", "--format="+logFormat); ok {
		for k, v := range parseLog(out) {
			tags[k] = v
		}
	}

	return tags, errors.Join(errs...)
}

// WorkspacePath returns the output of "git rev-parse --show-toplevel".
func (e *ExecExtractor) WorkspacePath(ctx context.Context, dir string) (string, error) {
	return e.run(ctx, dir, "rev-parse", "--show-toplevel")
}

func parseLog(out string) map[string]string {
	fields := strings.SplitN(out, "\x00", 7)
	if len(fields) != 7 {
		return nil
	}
	return map[string]string{
		CommitAuthorName:     fields[0],
		CommitAuthorEmail:    fields[1],
		CommitAuthorDate:     fields[2],
		CommitCommitterName:  fields[3],
		CommitCommitterEmail: fields[4],
		CommitCommitterDate:  fields[5],
		CommitMessage:        strings.TrimSpace(fields[6]),
	}
}

func (e *ExecExtractor) run(ctx context.Context, dir string, args ...string) (string, error) {
	path := e.Path
	if path == "" {
		path = "git"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", &pkgerrors.GitNotFoundError{Path: path, Cause: err}
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, resolved, args...)
	cmd.Dir = dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	e.logger().Debug("git command finished",
		"args", strings.Join(args, " "),
		log.Duration(time.Since(start)),
	)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &pkgerrors.TimeoutError{Operation: "git " + args[0], Duration: timeout, Cause: err}
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return "", &pkgerrors.GitCommandError{
			Args:     args,
			ExitCode: code,
			Stderr:   strings.TrimSpace(stderr.String()),
			Cause:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (e *ExecExtractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
