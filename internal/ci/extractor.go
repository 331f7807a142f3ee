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

package ci

import (
	"context"
	"errors"
	"log/slog"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tombee/apmkit/internal/git"
	"github.com/tombee/apmkit/internal/log"
	"github.com/tombee/apmkit/internal/tracing"
	pkgerrors "github.com/tombee/apmkit/pkg/errors"
)

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger for recoverable git failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// WithMetrics counts extractions per provider.
func WithMetrics(mc *tracing.MetricsCollector) Option {
	return func(e *Extractor) { e.metrics = mc }
}

// WithFacets replaces the OS and runtime facet source.
func WithFacets(fn func(context.Context) Tags) Option {
	return func(e *Extractor) { e.facets = fn }
}

// Extractor assembles CI tags.
type Extractor struct {
	git     git.Extractor
	logger  *slog.Logger
	metrics *tracing.MetricsCollector
	facets  func(context.Context) Tags
}

// NewExtractor returns an Extractor that completes provider tags with
// metadata from g. A nil g skips repository metadata.
func NewExtractor(g git.Extractor, opts ...Option) *Extractor {
	e := &Extractor{
		git:    g,
		logger: slog.Default(),
		facets: RuntimeFacets,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tags extracts the tag set for env, reading repository metadata from
// dir. Precedence, lowest first: git metadata, provider values, DD_GIT_*
// overrides. Empty values are omitted.
func (e *Extractor) Tags(ctx context.Context, env Env, dir string) Tags {
	tags := Tags{}
	if p, ok := Detect(env); ok {
		tags = p.Extract(env)
	}
	logger := log.WithProvider(e.logger, tags.Provider())

	for k, v := range e.repositoryMetadata(ctx, dir, logger) {
		if tags[k] == "" {
			tags.set(k, v)
		}
	}
	for k, v := range git.UserMetadata(env) {
		tags[k] = v
	}

	if tag := NormalizeRef(tags[git.Tag]); tag != "" {
		tags[git.Tag] = tag
		delete(tags, git.Branch)
	} else {
		delete(tags, git.Tag)
	}
	if branch, ok := tags[git.Branch]; ok {
		tags[git.Branch] = NormalizeRef(branch)
	}
	if url, ok := tags[git.RepositoryURL]; ok {
		tags[git.RepositoryURL] = FilterSensitiveInfo(url)
	}
	if ws, ok := tags[WorkspacePath]; ok {
		tags[WorkspacePath] = expandHome(ws)
	}

	for k, v := range e.facets(ctx) {
		tags[k] = v
	}

	for k, v := range tags {
		if v == "" {
			delete(tags, k)
		}
	}

	e.metrics.RecordCIExtraction(ctx, tags.Provider())
	return tags
}

func (e *Extractor) repositoryMetadata(ctx context.Context, dir string, logger *slog.Logger) map[string]string {
	if e.git == nil {
		return nil
	}
	md, err := e.git.Metadata(ctx, dir)
	if err != nil {
		logGitError(logger, "failed to extract git metadata", err)
	}
	if md == nil {
		md = make(map[string]string)
	}

	ws, err := e.git.WorkspacePath(ctx, dir)
	if err != nil {
		logGitError(logger, "failed to extract workspace path", err)
		return md
	}
	md[WorkspacePath] = ws
	return md
}

func logGitError(logger *slog.Logger, msg string, err error) {
	var nf *pkgerrors.GitNotFoundError
	if errors.As(err, &nf) {
		logger.Error("git executable not found, cannot extract git metadata", "path", nf.Path)
		return
	}
	logger.Error(msg, log.Error(err), "error_type", pkgerrors.Classify(err))
}

// RuntimeFacets reports the host OS and the Go runtime.
func RuntimeFacets(ctx context.Context) Tags {
	t := Tags{
		OSPlatform:     cases.Title(language.Und).String(runtime.GOOS),
		RuntimeName:    "go",
		RuntimeVersion: runtime.Version(),
	}
	arch, err := host.KernelArch()
	if err != nil || arch == "" {
		arch = runtime.GOARCH
	}
	t[OSArchitecture] = arch
	if version, err := host.KernelVersionWithContext(ctx); err == nil {
		t.set(OSVersion, version)
	}
	return t
}
