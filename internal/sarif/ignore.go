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

package sarif

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher decides whether an artifact URI is ignored.
//
// Plain entries match as path prefixes ("tests/tracer/" ignores everything
// below that directory). Entries containing glob metacharacters are
// matched as doublestar patterns:
//   - * matches any sequence of non-separators
//   - ** matches across separators
//   - ? matches one non-separator
//   - [class] and {a,b} work as in doublestar
type Matcher struct {
	prefixes []string
	globs    []string
}

// NewMatcher validates entries and builds a Matcher.
func NewMatcher(entries []string) (*Matcher, error) {
	m := &Matcher{}
	for _, e := range entries {
		if e == "" {
			continue
		}
		if !isGlob(e) {
			m.prefixes = append(m.prefixes, e)
			continue
		}
		if !doublestar.ValidatePattern(e) {
			return nil, fmt.Errorf("invalid ignore pattern %q", e)
		}
		m.globs = append(m.globs, e)
	}
	return m, nil
}

// Match reports whether uri is ignored.
func (m *Matcher) Match(uri string) bool {
	for _, p := range m.prefixes {
		if strings.HasPrefix(uri, p) {
			return true
		}
	}
	for _, g := range m.globs {
		if ok, _ := doublestar.Match(g, uri); ok {
			return true
		}
	}
	return false
}

// Empty reports whether the matcher ignores nothing.
func (m *Matcher) Empty() bool {
	return len(m.prefixes) == 0 && len(m.globs) == 0
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}
