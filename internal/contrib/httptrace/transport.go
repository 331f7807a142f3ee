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

// Package httptrace instruments outbound HTTP requests: each request gets a
// client span, propagation headers and a log line.
package httptrace

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/apmkit/internal/log"
	"github.com/tombee/apmkit/internal/tracing"
	"github.com/tombee/apmkit/internal/tracing/redact"
)

const instrumentationName = "github.com/tombee/apmkit/internal/contrib/httptrace"

// Span attribute keys.
const (
	MethodKey      = "http.method"
	URLKey         = "http.url"
	StatusCodeKey  = "http.status_code"
	PeerServiceKey = "peer.service"
)

// Option configures a Transport.
type Option func(*Transport)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(t *Transport) { t.cfg = cfg }
}

// WithTracerProvider sets the provider spans are started on. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(t *Transport) { t.tracer = tp.Tracer(instrumentationName) }
}

// WithPropagator overrides tracing.Propagator for header injection.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(t *Transport) { t.propagator = p }
}

// WithMetrics records request counts and durations into mc.
func WithMetrics(mc *tracing.MetricsCollector) Option {
	return func(t *Transport) { t.metrics = mc }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) { t.logger = logger }
}

// Transport is an http.RoundTripper that traces every request it carries.
type Transport struct {
	base       http.RoundTripper
	cfg        Config
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	metrics    *tracing.MetricsCollector
	logger     *slog.Logger
}

// NewTransport wraps base, or http.DefaultTransport when nil.
func NewTransport(base http.RoundTripper, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		base:       base,
		cfg:        DefaultConfig(),
		propagator: tracing.Propagator(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	t.logger = log.WithComponent(t.logger, "httptrace")
	return t
}

// WrapClient returns a copy of c whose transport is traced.
func WrapClient(c *http.Client, opts ...Option) *http.Client {
	if c == nil {
		c = &http.Client{}
	}
	wrapped := *c
	wrapped.Transport = NewTransport(c.Transport, opts...)
	return &wrapped
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	safeURL := redact.URL(req.URL)

	peer := t.cfg.ServiceName
	if t.cfg.SplitByDomain && req.URL != nil {
		peer = req.URL.Hostname()
	}

	spanAttrs := []attribute.KeyValue{
		attribute.String(MethodKey, req.Method),
		attribute.String(URLKey, safeURL),
		attribute.String(PeerServiceKey, peer),
	}
	if r, ok := resendFrom(req.Context()); ok {
		spanAttrs = append(spanAttrs,
			attribute.Int(ResendCountKey, r.count),
			attribute.String(RetryReasonKey, r.reason),
		)
	}
	ctx, span := t.tracer.Start(req.Context(), t.cfg.SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(spanAttrs...),
	)
	defer span.End()

	// RoundTrippers must not modify the caller's request.
	out := req.Clone(ctx)
	if out.Header.Get("User-Agent") == "" && t.cfg.UserAgent != "" {
		out.Header.Set("User-Agent", t.cfg.UserAgent)
	}
	if t.cfg.DistributedTracing {
		tracing.InjectHTTPHeaders(ctx, out, t.propagator)
	}
	tracing.InjectCorrelationID(ctx, out)

	resp, err := t.base.RoundTrip(out)
	duration := time.Since(start)

	logger := log.WithSpan(ctx, t.logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.metrics.RecordHTTPRequest(ctx, req.Method, 0, duration)
		logger.Warn("http request failed",
			"method", req.Method,
			"url", safeURL,
			log.Duration(duration),
			"error", err.Error(),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int(StatusCodeKey, resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	t.metrics.RecordHTTPRequest(ctx, req.Method, resp.StatusCode, duration)

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "http request",
		"method", req.Method,
		"url", safeURL,
		"status", resp.StatusCode,
		log.Duration(duration),
	)

	return resp, nil
}
