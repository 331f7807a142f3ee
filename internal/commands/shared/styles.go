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
	"github.com/charmbracelet/lipgloss"
)

// Status classifies a line of human-readable output.
type Status int

const (
	StatusOK Status = iota
	StatusWarn
	StatusError
)

var statusStyles = map[Status]struct {
	symbol string
	style  lipgloss.Style
}{
	StatusOK:    {"✓", lipgloss.NewStyle().Foreground(lipgloss.Color("42"))},
	StatusWarn:  {"⚠", lipgloss.NewStyle().Foreground(lipgloss.Color("214"))},
	StatusError: {"✗", lipgloss.NewStyle().Foreground(lipgloss.Color("196"))},
}

// Muted styles labels such as "trace:" in key/value lines.
var Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

// Symbol returns the plain marker for s.
func (s Status) Symbol() string {
	return statusStyles[s].symbol
}

// Render prefixes msg with the colored marker for s.
func (s Status) Render(msg string) string {
	st := statusStyles[s]
	return st.style.Render(st.symbol) + " " + msg
}

func RenderOK(msg string) string { return StatusOK.Render(msg) }
func RenderWarn(msg string) string { return StatusWarn.Render(msg) }
func RenderError(msg string) string { return StatusError.Render(msg) }

// RenderLabel renders label in the muted style.
func RenderLabel(label string) string {
	return Muted.Render(label)
}
