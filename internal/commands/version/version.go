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

// Package version implements "apmkit version".
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/tombee/apmkit/internal/commands/shared"
)

// VersionInfo describes the binary and the tracing SDK it was built with.
type VersionInfo struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildDate   string `json:"build_date"`
	GoVersion   string `json:"go_version"`
	Platform    string `json:"platform"`
	OTelVersion string `json:"otel_version"`
}

type versionResponse struct {
	shared.JSONResponse
	VersionInfo
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show build and SDK versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion(cmd, currentInfo())
		},
	}
}

func currentInfo() VersionInfo {
	v, c, b := shared.GetVersion()
	return VersionInfo{
		Version:     v,
		Commit:      c,
		BuildDate:   b,
		GoVersion:   runtime.Version(),
		Platform:    runtime.GOOS + "/" + runtime.GOARCH,
		OTelVersion: otel.Version(),
	}
}

func printVersion(cmd *cobra.Command, info VersionInfo) error {
	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, versionResponse{
			JSONResponse: shared.NewJSONResponse("version"),
			VersionInfo:  info,
		})
	}

	fmt.Fprintf(out, "apmkit version %s\n", info.Version)
	for _, kv := range [][2]string{
		{"commit:", info.Commit},
		{"built:", info.BuildDate},
		{"go:", info.GoVersion + " (" + info.Platform + ")"},
		{"otel:", info.OTelVersion},
	} {
		fmt.Fprintf(out, "  %s %s\n", shared.RenderLabel(fmt.Sprintf("%-7s", kv[0])), kv[1])
	}
	return nil
}
