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
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Callback outcomes recorded by RecordCallback.
const (
	OutcomeRestored = "restored"
	OutcomeFallback = "fallback"
)

// MetricsCollector records instrumentation metrics. A nil collector is
// valid and records nothing, so instrumented packages can hold one
// unconditionally.
type MetricsCollector struct {
	meter metric.Meter

	callbacksTotal       metric.Int64Counter
	httpRequestsTotal    metric.Int64Counter
	httpDuration         metric.Float64Histogram
	sqlInteractionsTotal metric.Int64Counter
	ciExtractionsTotal   metric.Int64Counter

	pending atomic.Int64
}

// NewMetricsCollector creates a new metrics collector using the given meter provider.
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("apmkit")
	mc := &MetricsCollector{meter: meter}

	var err error

	mc.callbacksTotal, err = meter.Int64Counter(
		"apmkit_async_callbacks_total",
		metric.WithDescription("Callbacks run under a restored trace context"),
		metric.WithUnit("{callback}"),
	)
	if err != nil {
		return nil, err
	}

	mc.httpRequestsTotal, err = meter.Int64Counter(
		"apmkit_http_client_requests_total",
		metric.WithDescription("Outbound HTTP requests made by traced clients"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	mc.httpDuration, err = meter.Float64Histogram(
		"apmkit_http_client_duration_seconds",
		metric.WithDescription("Outbound HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mc.sqlInteractionsTotal, err = meter.Int64Counter(
		"apmkit_sql_interactions_total",
		metric.WithDescription("Database interactions run through a traced pool"),
		metric.WithUnit("{interaction}"),
	)
	if err != nil {
		return nil, err
	}

	mc.ciExtractionsTotal, err = meter.Int64Counter(
		"apmkit_ci_tag_extractions_total",
		metric.WithDescription("CI tag extractions by detected provider"),
		metric.WithUnit("{extraction}"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"apmkit_async_pending",
		metric.WithDescription("Asynchronous operations whose callbacks have not run yet"),
		metric.WithUnit("{operation}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(mc.pending.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordCallback counts a callback by outcome (OutcomeRestored or OutcomeFallback).
func (mc *MetricsCollector) RecordCallback(ctx context.Context, outcome string) {
	if mc == nil {
		return
	}
	mc.callbacksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordHTTPRequest records one outbound request. A zero status means the
// transport failed before a response arrived.
func (mc *MetricsCollector) RecordHTTPRequest(ctx context.Context, method string, status int, duration time.Duration) {
	if mc == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status_class", StatusClass(status)),
	)
	mc.httpRequestsTotal.Add(ctx, 1, attrs)
	mc.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSQLInteraction counts an interaction by outcome ("commit" or "rollback").
func (mc *MetricsCollector) RecordSQLInteraction(ctx context.Context, outcome string) {
	if mc == nil {
		return
	}
	mc.sqlInteractionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordCIExtraction counts a tag extraction. provider is "" outside CI.
func (mc *MetricsCollector) RecordCIExtraction(ctx context.Context, provider string) {
	if mc == nil {
		return
	}
	if provider == "" {
		provider = "none"
	}
	mc.ciExtractionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// IncrementPending marks an asynchronous operation as started.
func (mc *MetricsCollector) IncrementPending() {
	if mc == nil {
		return
	}
	mc.pending.Add(1)
}

// DecrementPending marks an asynchronous operation as finished.
func (mc *MetricsCollector) DecrementPending() {
	if mc == nil {
		return
	}
	mc.pending.Add(-1)
}

// StatusClass maps an HTTP status to "2xx", "4xx" and so on, or "error"
// for a zero status.
func StatusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
