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

package redact

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter wraps next so spans are redacted before they leave the process.
// Spans are immutable once ended, so redaction happens on a read-only view.
func Exporter(next sdktrace.SpanExporter, r *Redactor) sdktrace.SpanExporter {
	if r == nil || r.mode == ModeNone {
		return next
	}
	return &exporter{next: next, redactor: r}
}

type exporter struct {
	next     sdktrace.SpanExporter
	redactor *Redactor
}

func (e *exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	out := make([]sdktrace.ReadOnlySpan, len(spans))
	for i, s := range spans {
		out[i] = &redactedSpan{ReadOnlySpan: s, redactor: e.redactor}
	}
	return e.next.ExportSpans(ctx, out)
}

func (e *exporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

type redactedSpan struct {
	sdktrace.ReadOnlySpan
	redactor *Redactor
}

func (s *redactedSpan) Attributes() []attribute.KeyValue {
	return s.redactor.Attributes(s.ReadOnlySpan.Attributes())
}

func (s *redactedSpan) Events() []sdktrace.Event {
	events := s.ReadOnlySpan.Events()
	out := make([]sdktrace.Event, len(events))
	for i, ev := range events {
		ev.Attributes = s.redactor.Attributes(ev.Attributes)
		out[i] = ev
	}
	return out
}
