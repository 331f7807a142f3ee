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

// Package redact scrubs secrets from span attributes, URLs and log values.
package redact

import (
	"net/url"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Mode determines how aggressively values are redacted.
type Mode string

const (
	// ModeNone disables redaction.
	ModeNone Mode = "none"

	// ModeStandard applies pattern-based redaction for common secrets.
	ModeStandard Mode = "standard"

	// ModeStrict redacts every string value and keeps only keys.
	ModeStrict Mode = "strict"
)

// Placeholder replaces redacted values.
const Placeholder = "[REDACTED]"

// ParseMode validates a configured mode. "" means ModeStandard.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "":
		return ModeStandard, true
	case ModeNone, ModeStandard, ModeStrict:
		return Mode(s), true
	}
	return "", false
}

// Pattern is a named replacement rule.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// StandardPatterns returns the default set of redaction patterns.
func StandardPatterns() []Pattern {
	return []Pattern{
		{
			Name:        "url_credentials",
			Regex:       regexp.MustCompile(`(https?://)[^/@\s]*@`),
			Replacement: "$1",
		},
		{
			Name:        "api_key",
			Regex:       regexp.MustCompile(`(?i)(api[_-]?key|apikey)["\s:=]+([a-zA-Z0-9_\-]{16,})`),
			Replacement: "$1=" + Placeholder,
		},
		{
			Name:        "bearer_token",
			Regex:       regexp.MustCompile(`(?i)(bearer\s+)([a-zA-Z0-9_\-\.]{20,})`),
			Replacement: "$1" + Placeholder,
		},
		{
			Name:        "password",
			Regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)["\s:=]+([^\s"]+)`),
			Replacement: "$1=" + Placeholder,
		},
		{
			Name:        "aws_key",
			Regex:       regexp.MustCompile(`(AKIA[0-9A-Z]{16})`),
			Replacement: "[REDACTED-AWS-KEY]",
		},
		{
			Name:        "github_token",
			Regex:       regexp.MustCompile(`\b(gh[pousr]_[A-Za-z0-9]{36,})\b`),
			Replacement: "[REDACTED-GITHUB-TOKEN]",
		},
		{
			Name:        "private_key",
			Regex:       regexp.MustCompile(`(?s)(-----BEGIN (RSA |EC |DSA )?PRIVATE KEY-----).*?(-----END (RSA |EC |DSA )?PRIVATE KEY-----)`),
			Replacement: "$1" + Placeholder + "$3",
		},
		{
			Name:        "jwt",
			Regex:       regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
			Replacement: "[REDACTED-JWT]",
		},
		{
			Name:        "generic_secret",
			Regex:       regexp.MustCompile(`(?i)(secret|token)["\s:=]+([a-zA-Z0-9_\-]{16,})`),
			Replacement: "$1=" + Placeholder,
		},
	}
}

// sensitiveNames are substrings that mark a key, header or query
// parameter as secret.
var sensitiveNames = []string{
	"password", "passwd", "pwd",
	"secret", "token",
	"api_key", "apikey", "key",
	"private",
	"authorization", "auth",
	"credential",
	"cookie", "session",
}

// IsSensitiveName reports whether name looks like it holds a secret.
// Comparison is case-insensitive.
func IsSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveNames {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Redactor applies redaction rules.
type Redactor struct {
	mode     Mode
	patterns []Pattern
}

// NewRedactor creates a redactor with the standard patterns.
func NewRedactor(mode Mode) *Redactor {
	return NewRedactorWithPatterns(mode, StandardPatterns())
}

// NewRedactorWithPatterns creates a redactor with custom patterns.
func NewRedactorWithPatterns(mode Mode, patterns []Pattern) *Redactor {
	return &Redactor{mode: mode, patterns: patterns}
}

// Mode returns the redactor's mode.
func (r *Redactor) Mode() Mode {
	return r.mode
}

// String applies redaction patterns to s.
func (r *Redactor) String(s string) string {
	switch r.mode {
	case ModeNone:
		return s
	case ModeStrict:
		return Placeholder
	}

	for _, p := range r.patterns {
		s = p.Regex.ReplaceAllString(s, p.Replacement)
	}
	return s
}

// Attributes returns a redacted copy of attrs. Attributes whose key looks
// sensitive lose their value entirely.
func (r *Redactor) Attributes(attrs []attribute.KeyValue) []attribute.KeyValue {
	if r.mode == ModeNone {
		return attrs
	}

	out := make([]attribute.KeyValue, len(attrs))
	for i, kv := range attrs {
		key := string(kv.Key)
		switch {
		case IsSensitiveName(lastSegment(key)):
			out[i] = attribute.String(key, Placeholder)
		case kv.Value.Type() == attribute.STRING:
			out[i] = attribute.String(key, r.String(kv.Value.AsString()))
		case r.mode == ModeStrict:
			out[i] = attribute.String(key, Placeholder)
		default:
			out[i] = kv
		}
	}
	return out
}

// lastSegment returns the final dotted component so "git.commit.sha" is
// judged by "sha" and not by a namespace that happens to contain "key".
func lastSegment(key string) string {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		return key[i+1:]
	}
	return key
}

// URL renders u without user info and with sensitive query parameters
// replaced by the placeholder.
func URL(u *url.URL) string {
	if u == nil {
		return ""
	}

	safe := *u
	safe.User = nil

	if safe.RawQuery != "" {
		q := safe.Query()
		for param := range q {
			if IsSensitiveName(param) {
				q.Set(param, Placeholder)
			}
		}
		safe.RawQuery = q.Encode()
	}
	return safe.String()
}

// URLString is URL for raw strings. Unparseable input is passed through
// the credential pattern only.
func URLString(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return StandardPatterns()[0].Regex.ReplaceAllString(raw, "$1")
	}
	return URL(u)
}
