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

package cli

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "apmkit", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.True(t, cmd.SilenceErrors)
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"verbose", "quiet", "json", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s not registered", name)
	}
	assert.Equal(t, "v", cmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestVerboseQuietExclusive(t *testing.T) {
	cmd := NewRootCommand()
	// Binding the flags again resets the shared values to their defaults.
	t.Cleanup(func() { NewRootCommand() })
	cmd.AddCommand(&cobra.Command{Use: "noop", RunE: func(*cobra.Command, []string) error { return nil }})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"noop", "--verbose", "--quiet"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verbose")
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2025-12-22")
	defer SetVersion("dev", "unknown", "unknown")

	v, c, b := GetVersion()
	assert.Equal(t, "1.2.3", v)
	assert.Equal(t, "abc123", c)
	assert.Equal(t, "2025-12-22", b)
}

func TestVersionFlag(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2025-12-22")
	defer SetVersion("dev", "unknown", "unknown")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "apmkit 1.2.3 (commit abc123, built 2025-12-22)\n", out.String())
}
