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

package format

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeANSI(t *testing.T) {
	assert.Equal(t, "red text", SanitizeANSI("\x1b[31mred\x1b[0m text"))
	assert.Equal(t, "plain", SanitizeANSI("plain"))
}

func TestKeyValueTable(t *testing.T) {
	out := KeyValueTable("TAG", "VALUE", map[string]string{
		"git.branch":       "main",
		"ci.provider.name": "github",
	})

	assert.Contains(t, out, "TAG")
	assert.Contains(t, out, "VALUE")
	assert.Contains(t, out, "git.branch")
	assert.Contains(t, out, "github")
	assert.Less(t, strings.Index(out, "ci.provider.name"), strings.Index(out, "git.branch"))
}

func TestTable_StripsEscapes(t *testing.T) {
	out := Table([]string{"K", "V"}, [][]string{{"k", "\x1b]0;title\x07\x1b[2Jv"}})
	assert.NotContains(t, out, "\x1b[2J")
}

func TestIsTerminal_NonFile(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("NO_COLOR", "")
	assert.False(t, IsTerminal(&bytes.Buffer{}))
}

func TestIsTerminal_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.False(t, IsTTY())
}
