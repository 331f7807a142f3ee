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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumFor(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	return 0
}

func TestMetricsCollector_Records(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	mc, err := NewMetricsCollector(mp)
	require.NoError(t, err)

	ctx := context.Background()
	mc.RecordCallback(ctx, OutcomeRestored)
	mc.RecordCallback(ctx, OutcomeRestored)
	mc.RecordCallback(ctx, OutcomeFallback)
	mc.RecordHTTPRequest(ctx, "GET", 503, time.Second)
	mc.RecordSQLInteraction(ctx, "commit")
	mc.RecordCIExtraction(ctx, "")
	mc.RecordCIExtraction(ctx, "github")
	mc.IncrementPending()
	mc.IncrementPending()
	mc.DecrementPending()

	metrics := collect(t, reader)

	assert.Equal(t, int64(2), sumFor(t, metrics["apmkit_async_callbacks_total"], "outcome", OutcomeRestored))
	assert.Equal(t, int64(1), sumFor(t, metrics["apmkit_async_callbacks_total"], "outcome", OutcomeFallback))
	assert.Equal(t, int64(1), sumFor(t, metrics["apmkit_http_client_requests_total"], "status_class", "5xx"))
	assert.Equal(t, int64(1), sumFor(t, metrics["apmkit_sql_interactions_total"], "outcome", "commit"))
	assert.Equal(t, int64(1), sumFor(t, metrics["apmkit_ci_tag_extractions_total"], "provider", "none"))
	assert.Equal(t, int64(1), sumFor(t, metrics["apmkit_ci_tag_extractions_total"], "provider", "github"))

	gauge, ok := metrics["apmkit_async_pending"].Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(1), gauge.DataPoints[0].Value)

	_, ok = metrics["apmkit_http_client_duration_seconds"].Data.(metricdata.Histogram[float64])
	assert.True(t, ok)
}

func TestMetricsCollector_NilIsNoop(t *testing.T) {
	var mc *MetricsCollector
	ctx := context.Background()

	assert.NotPanics(t, func() {
		mc.RecordCallback(ctx, OutcomeRestored)
		mc.RecordHTTPRequest(ctx, "GET", 200, time.Millisecond)
		mc.RecordSQLInteraction(ctx, "rollback")
		mc.RecordCIExtraction(ctx, "travis")
		mc.IncrementPending()
		mc.DecrementPending()
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "error", StatusClass(0))
	assert.Equal(t, "2xx", StatusClass(204))
	assert.Equal(t, "4xx", StatusClass(404))
	assert.Equal(t, "5xx", StatusClass(500))
}
