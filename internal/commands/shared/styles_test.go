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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHelpers(t *testing.T) {
	tests := []struct {
		name   string
		render func(string) string
		symbol string
	}{
		{"ok", RenderOK, StatusOK.Symbol()},
		{"warn", RenderWarn, StatusWarn.Symbol()},
		{"error", RenderError, StatusError.Symbol()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.render("3 results removed")
			assert.Contains(t, out, tt.symbol)
			assert.True(t, strings.HasSuffix(out, " 3 results removed"))
		})
	}
	assert.Contains(t, RenderLabel("trace:"), "trace:")
}
