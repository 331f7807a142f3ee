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
	"regexp"
	"sort"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ansiEscapeRegex matches ANSI escape sequences for sanitization.
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// SanitizeANSI removes ANSI escape sequences from a string. Values read
// from the environment or a repository are passed through it before they
// reach the terminal.
func SanitizeANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) string {
	clean := make([][]string, len(rows))
	for i, row := range rows {
		clean[i] = make([]string, len(row))
		for j, cell := range row {
			clean[i][j] = SanitizeANSI(cell)
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(clean...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return keyStyle
			default:
				return cellStyle
			}
		})
	return t.Render()
}

// KeyValueTable renders a map as a two column table sorted by key.
func KeyValueTable(keyHeader, valueHeader string, values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, values[k]})
	}
	return Table([]string{keyHeader, valueHeader}, rows)
}
