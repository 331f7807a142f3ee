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

package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tombee/apmkit/internal/tracing/export"
	"github.com/tombee/apmkit/internal/tracing/redact"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// CreateExporter creates a span exporter from configuration. A nil
// exporter with a nil error means the type was "none".
func CreateExporter(ctx context.Context, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Type {
	case "console":
		return export.NewConsole(export.ConsoleOptions{Writer: os.Stderr, Pretty: true})

	case "otlp", "otlp_http", "otlp-http":
		tlsConfig, err := export.LoadTLS(export.TLSOptions{
			Enabled:           cfg.TLS.Enabled,
			VerifyCertificate: cfg.TLS.VerifyCertificate,
			CACertPath:        cfg.TLS.CACertPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build TLS config for %s exporter: %w", cfg.Type, err)
		}

		opts := export.OTLPOptions{
			Endpoint: cfg.Endpoint,
			Insecure: !cfg.TLS.Enabled,
			TLS:      tlsConfig,
			Headers:  cfg.Headers,
			Timeout:  cfg.Timeout,
		}
		if cfg.Type == "otlp" {
			return export.NewOTLPGRPC(ctx, opts)
		}
		return export.NewOTLPHTTP(ctx, opts)

	case "none", "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.Type)
	}
}

// CreateExportersFromConfig creates batch span processors for all
// configured exporters. Exporter creation failures are logged but don't
// block startup.
func CreateExportersFromConfig(ctx context.Context, cfg Config) ([]sdktrace.SpanProcessor, error) {
	var processors []sdktrace.SpanProcessor

	mode, ok := redact.ParseMode(cfg.Redaction)
	if !ok {
		return nil, fmt.Errorf("unknown redaction mode %q", cfg.Redaction)
	}
	redactor := redact.NewRedactor(mode)

	for i, exporterCfg := range cfg.Exporters {
		exporter, err := CreateExporter(ctx, exporterCfg)
		if err != nil {
			slog.Warn("failed to create exporter, skipping",
				"index", i,
				"type", exporterCfg.Type,
				"endpoint", exporterCfg.Endpoint,
				"error", err)
			continue
		}
		if exporter == nil {
			continue
		}

		var batchOpts []sdktrace.BatchSpanProcessorOption
		if cfg.BatchSize > 0 {
			batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.BatchSize))
		}
		if cfg.BatchInterval > 0 {
			batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.BatchInterval))
		}

		exporter = redact.Exporter(exporter, redactor)
		processors = append(processors, sdktrace.NewBatchSpanProcessor(exporter, batchOpts...))

		slog.Debug("created exporter",
			"type", exporterCfg.Type,
			"endpoint", exporterCfg.Endpoint)
	}

	return processors, nil
}
