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

// Package sarif removes results from SARIF static-analysis reports.
//
// A result is dropped when the artifact URI of its first location matches
// an ignore entry (see [Matcher]). Every run in the report is filtered and
// all other content, including fields this package does not know about,
// is preserved.
package sarif

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds a single filter evaluation.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxInputSize is the largest report accepted (256MB).
	DefaultMaxInputSize = 256 * 1024 * 1024
)

// program keeps results whose first location has no string URI or a
// URI that is not ignored.
const program = `
if (.runs | type) == "array" then
  .runs |= map(
    if (.results | type) == "array" then
      .results |= map(select(
        ((.locations[0].physicalLocation.artifactLocation.uri)? // null) as $uri
        | ($uri | type) != "string" or ($uri | ignored | not)
      ))
    else . end
  )
else . end
`

// Stats summarizes one filter pass.
type Stats struct {
	Runs    int `json:"runs"`
	Results int `json:"results"`
	Removed int `json:"removed"`
}

// Kept returns the number of results left in the report.
func (s Stats) Kept() int {
	return s.Results - s.Removed
}

// Option configures a Filterer.
type Option func(*Filterer)

// WithTimeout bounds each evaluation.
func WithTimeout(d time.Duration) Option {
	return func(f *Filterer) { f.timeout = d }
}

// WithMaxInputSize rejects reports larger than n bytes.
func WithMaxInputSize(n int64) Option {
	return func(f *Filterer) { f.maxInputSize = n }
}

// WithIndent sets the output indentation. An empty indent produces
// compact output.
func WithIndent(indent string) Option {
	return func(f *Filterer) { f.indent = indent }
}

// Filterer applies one ignore list to reports.
type Filterer struct {
	matcher      *Matcher
	code         *gojq.Code
	timeout      time.Duration
	maxInputSize int64
	indent       string
}

// New compiles the filter program for ignore.
func New(ignore []string, opts ...Option) (*Filterer, error) {
	matcher, err := NewMatcher(ignore)
	if err != nil {
		return nil, err
	}

	query, err := gojq.Parse(program)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	code, err := gojq.Compile(query,
		gojq.WithFunction("ignored", 0, 0, func(v any, _ []any) any {
			uri, ok := v.(string)
			return ok && matcher.Match(uri)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("compile error: %w", err)
	}

	f := &Filterer{
		matcher:      matcher,
		code:         code,
		timeout:      DefaultTimeout,
		maxInputSize: DefaultMaxInputSize,
		indent:       "  ",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Filter is a convenience wrapper around New and (*Filterer).Filter.
func Filter(report []byte, ignore []string) ([]byte, Stats, error) {
	f, err := New(ignore)
	if err != nil {
		return nil, Stats{}, err
	}
	return f.Filter(context.Background(), report)
}

// Filter returns report with ignored results removed.
func (f *Filterer) Filter(ctx context.Context, report []byte) ([]byte, Stats, error) {
	if f.maxInputSize > 0 && int64(len(report)) > f.maxInputSize {
		return nil, Stats{}, fmt.Errorf("report size (%d bytes) exceeds maximum (%d bytes)", len(report), f.maxInputSize)
	}

	dec := json.NewDecoder(bytes.NewReader(report))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, Stats{}, fmt.Errorf("failed to parse report: %w", err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, Stats{}, fmt.Errorf("report is not a JSON object")
	}
	doc = normalizeNumbers(doc)

	runs, before := count(doc)

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	iter := f.code.RunWithContext(ctx, doc)
	out, ok := iter.Next()
	if !ok {
		return nil, Stats{}, fmt.Errorf("filter produced no output")
	}
	if err, isErr := out.(error); isErr {
		if ctx.Err() != nil {
			return nil, Stats{}, fmt.Errorf("filter timed out after %v: %w", f.timeout, err)
		}
		return nil, Stats{}, fmt.Errorf("filter failed: %w", err)
	}

	_, after := count(out)
	stats := Stats{Runs: runs, Results: before, Removed: before - after}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", f.indent)
	if err := enc.Encode(out); err != nil {
		return nil, Stats{}, fmt.Errorf("failed to encode report: %w", err)
	}
	return buf.Bytes(), stats, nil
}

// FilterFile reads in, filters it and writes the result to out. out is
// replaced atomically so watchers of out never see a partial report.
func (f *Filterer) FilterFile(ctx context.Context, in, out string) (Stats, error) {
	report, err := os.ReadFile(in)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read report: %w", err)
	}
	data, stats, err := f.Filter(ctx, report)
	if err != nil {
		return Stats{}, err
	}
	if err := writeAtomic(out, data); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// FilterFile filters the report at in into out using ignore.
func FilterFile(ctx context.Context, in, out string, ignore []string) (Stats, error) {
	f, err := New(ignore)
	if err != nil {
		return Stats{}, err
	}
	return f.FilterFile(ctx, in, out)
}

// count returns the number of runs and results in a decoded report.
func count(doc any) (runs, results int) {
	m, ok := doc.(map[string]any)
	if !ok {
		return 0, 0
	}
	list, _ := m["runs"].([]any)
	for _, r := range list {
		run, ok := r.(map[string]any)
		if !ok {
			continue
		}
		runs++
		if res, ok := run["results"].([]any); ok {
			results += len(res)
		}
	}
	return runs, results
}

// normalizeNumbers converts json.Number values to the numeric types gojq
// accepts, keeping integers exact.
func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
		if bi, ok := new(big.Int).SetString(v.String(), 10); ok {
			return bi
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for k, x := range v {
			v[k] = normalizeNumbers(x)
		}
		return v
	case []any:
		for i, x := range v {
			v[i] = normalizeNumbers(x)
		}
		return v
	default:
		return v
	}
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sarif-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
