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
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var credentialsPattern = regexp.MustCompile(`(https?://)[^/]*@`)

// NormalizeRef strips a leading refs/heads/ (or refs/), then origin/,
// then tags/ from a branch or tag name.
func NormalizeRef(ref string) string {
	if r, ok := strings.CutPrefix(ref, "refs/heads/"); ok {
		ref = r
	} else {
		ref = strings.TrimPrefix(ref, "refs/")
	}
	ref = strings.TrimPrefix(ref, "origin/")
	return strings.TrimPrefix(ref, "tags/")
}

// FilterSensitiveInfo removes user[:password]@ from http(s) URLs.
func FilterSensitiveInfo(url string) string {
	return credentialsPattern.ReplaceAllString(url, "${1}")
}

// expandHome replaces a leading ~ with the current user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
