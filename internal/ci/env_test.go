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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.env")
	content := "GITHUB_SHA=abc123\nGITHUB_REPOSITORY=acme/widgets\n# comment\nEMPTY=\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	env, err := EnvFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc123", env["GITHUB_SHA"])
	assert.Equal(t, "acme/widgets", env["GITHUB_REPOSITORY"])
	assert.True(t, env.Has("EMPTY"))
	assert.False(t, env.Has("MISSING"))
}

func TestEnvFromFile_Missing(t *testing.T) {
	_, err := EnvFromFile(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestEnvFromOS(t *testing.T) {
	t.Setenv("APMKIT_TEST_MARKER", "a=b")
	env := EnvFromOS()
	assert.Equal(t, "a=b", env["APMKIT_TEST_MARKER"])
}
