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

package httptrace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/apmkit/internal/tracing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func setup(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exporter
}

func attrs(s tracetest.SpanStub) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value, len(s.Attributes))
	for _, kv := range s.Attributes {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTransport_SpanAndHeaders(t *testing.T) {
	tp, exporter := setup(t)

	var got http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := WrapClient(server.Client(), WithTracerProvider(tp))

	ctx, parent := tp.Tracer("test").Start(context.Background(), "parent")
	ctx = tracing.WithOrigin(ctx, "ciapp-test")
	ctx = tracing.WithSamplingPriority(ctx, tracing.PriorityUserKeep)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/items?api_key=secret&page=1", nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	client0 := spans[0]
	assert.Equal(t, "http.request", client0.Name)
	assert.Equal(t, trace.SpanKindClient, client0.SpanKind)
	assert.Equal(t, parent.SpanContext().SpanID(), client0.Parent.SpanID())

	a := attrs(client0)
	assert.Equal(t, "GET", a[MethodKey].AsString())
	assert.Equal(t, server.URL+"/items?api_key=%5BREDACTED%5D&page=1", a[URLKey].AsString())
	assert.Equal(t, "http-client", a[PeerServiceKey].AsString())
	assert.Equal(t, int64(200), a[StatusCodeKey].AsInt64())
	assert.Equal(t, codes.Unset, client0.Status.Code)

	sc := client0.SpanContext
	low := sc.TraceID()
	assert.Equal(t, strconv.FormatUint(beUint64(low[8:]), 10), got.Get(tracing.HeaderTraceID))
	spanID := sc.SpanID()
	assert.Equal(t, strconv.FormatUint(beUint64(spanID[:]), 10), got.Get(tracing.HeaderParentID))
	assert.Equal(t, "2", got.Get(tracing.HeaderSamplingPriority))
	assert.Equal(t, "ciapp-test", got.Get(tracing.HeaderOrigin))
	assert.Contains(t, got.Get("traceparent"), sc.TraceID().String())
	assert.Equal(t, "apmkit/1.0", got.Get("User-Agent"))

	assert.Empty(t, req.Header.Get(tracing.HeaderTraceID), "caller's request must not be modified")
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func TestTransport_SplitByDomain(t *testing.T) {
	tp, exporter := setup(t)

	cfg := DefaultConfig()
	cfg.SplitByDomain = true
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
	}), WithConfig(cfg), WithTracerProvider(tp))

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com:8443/v1", nil)
	_, err := transport.RoundTrip(req)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "api.example.com", attrs(spans[0])[PeerServiceKey].AsString())
}

func TestTransport_DistributedTracingDisabled(t *testing.T) {
	tp, _ := setup(t)

	cfg := DefaultConfig()
	cfg.DistributedTracing = false

	var sent http.Header
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		sent = r.Header
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	}), WithConfig(cfg), WithTracerProvider(tp))

	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	defer span.End()
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil).WithContext(ctx)
	_, err := transport.RoundTrip(req)
	require.NoError(t, err)

	assert.Empty(t, sent.Get("traceparent"))
	assert.Empty(t, sent.Get(tracing.HeaderTraceID))
}

func TestTransport_ServerErrorSetsStatus(t *testing.T) {
	tp, exporter := setup(t)

	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusBadGateway, Body: http.NoBody, Request: r}, nil
	}), WithTracerProvider(tp))

	resp, err := transport.RoundTrip(httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, int64(502), attrs(spans[0])[StatusCodeKey].AsInt64())
}

func TestTransport_ClientErrorIsNotSpanError(t *testing.T) {
	tp, exporter := setup(t)

	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody, Request: r}, nil
	}), WithTracerProvider(tp))

	_, err := transport.RoundTrip(httptest.NewRequest(http.MethodGet, "http://example.com", nil))
	require.NoError(t, err)
	assert.Equal(t, codes.Unset, exporter.GetSpans()[0].Status.Code)
}

func TestTransport_TransportError(t *testing.T) {
	tp, exporter := setup(t)
	boom := errors.New("dial tcp: connection refused")

	transport := NewTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, boom
	}), WithTracerProvider(tp))

	req, err := http.NewRequest(http.MethodGet, "https://user:pw@example.com/x", nil)
	require.NoError(t, err)
	_, err = transport.RoundTrip(req)
	assert.ErrorIs(t, err, boom)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "https://example.com/x", attrs(spans[0])[URLKey].AsString())
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestTransport_CorrelationID(t *testing.T) {
	tp, _ := setup(t)

	var sent http.Header
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		sent = r.Header
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	}), WithTracerProvider(tp))

	id := tracing.NewCorrelationID()
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req = req.WithContext(tracing.WithCorrelationID(req.Context(), id))
	_, err := transport.RoundTrip(req)
	require.NoError(t, err)

	assert.Equal(t, id.String(), sent.Get(tracing.HeaderCorrelationID))
}

func TestTransport_PreservesUserAgent(t *testing.T) {
	tp, _ := setup(t)

	var sent http.Header
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		sent = r.Header
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	}), WithTracerProvider(tp))

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("User-Agent", "custom/2.0")
	_, err := transport.RoundTrip(req)
	require.NoError(t, err)

	assert.Equal(t, "custom/2.0", sent.Get("User-Agent"))
}

func TestWrapClient_Nil(t *testing.T) {
	c := WrapClient(nil)
	_, ok := c.Transport.(*Transport)
	assert.True(t, ok)
}

func TestNewClient_RetriesEachAttemptTraced(t *testing.T) {
	tp, exporter := setup(t)

	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(fastRetryConfig(), WithTracerProvider(tp))
	require.NoError(t, err)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	resp, err := client.Get(u.String())
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 2, attempts)
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, codes.Unset, spans[1].Status.Code)

	first, second := attrs(spans[0]), attrs(spans[1])
	assert.NotContains(t, first, attribute.Key(ResendCountKey))
	assert.Equal(t, int64(1), second[ResendCountKey].AsInt64())
	assert.Equal(t, "status 503", second[RetryReasonKey].AsString())
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	_, err := NewClient(cfg)
	assert.Error(t, err)
}
