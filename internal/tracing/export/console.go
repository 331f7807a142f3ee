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

package export

import (
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ConsoleOptions configures NewConsole.
type ConsoleOptions struct {
	// Writer receives one JSON document per span. Defaults to stderr so
	// spans do not mix with command output on stdout.
	Writer io.Writer

	Pretty bool

	// OmitTimestamps zeroes span times, for stable output in tests.
	OmitTimestamps bool
}

// NewConsole creates an exporter that prints finished spans as JSON.
func NewConsole(o ConsoleOptions) (sdktrace.SpanExporter, error) {
	w := o.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if o.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	if o.OmitTimestamps {
		opts = append(opts, stdouttrace.WithoutTimestamps())
	}

	exporter, err := stdouttrace.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create console exporter: %w", err)
	}
	return exporter, nil
}
