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

// Package export builds the span exporters apmkit ships traces through.
package export

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// OTLPOptions configures an OTLP exporter over either transport.
type OTLPOptions struct {
	// Endpoint is host:port of the receiver (e.g. "localhost:4317").
	Endpoint string

	// URLPath overrides the HTTP traces path (default "/v1/traces").
	URLPath string

	// Insecure disables TLS.
	Insecure bool

	// TLS is used when Insecure is false. A TLS 1.2 system-pool config is
	// used when nil.
	TLS *tls.Config

	// Headers are sent with every export request.
	Headers map[string]string

	// Timeout bounds each export call. Zero keeps the SDK default.
	Timeout time.Duration
}

func (o OTLPOptions) tlsConfig() (*tls.Config, error) {
	if o.TLS == nil {
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	}
	if err := CheckTLS(o.TLS); err != nil {
		return nil, fmt.Errorf("invalid TLS config: %w", err)
	}
	return o.TLS, nil
}

// NewOTLPGRPC creates an OTLP exporter that speaks gRPC.
func NewOTLPGRPC(ctx context.Context, o OTLPOptions) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(o.Endpoint)}

	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		cfg, err := o.tlsConfig()
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(cfg)))
	}
	if len(o.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(o.Headers))
	}
	if o.Timeout > 0 {
		opts = append(opts, otlptracegrpc.WithTimeout(o.Timeout))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
	}
	return exporter, nil
}

// NewOTLPHTTP creates an OTLP exporter that posts protobuf over HTTP.
func NewOTLPHTTP(ctx context.Context, o OTLPOptions) (sdktrace.SpanExporter, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(o.Endpoint)}
	if o.URLPath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(o.URLPath))
	}

	if o.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	} else {
		cfg, err := o.tlsConfig()
		if err != nil {
			return nil, err
		}
		opts = append(opts, otlptracehttp.WithTLSClientConfig(cfg))
	}
	if len(o.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(o.Headers))
	}
	if o.Timeout > 0 {
		opts = append(opts, otlptracehttp.WithTimeout(o.Timeout))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
	}
	return exporter, nil
}

// ParseHeaders parses the OTEL_EXPORTER_OTLP_HEADERS format,
// "key1=value1,key2=value2". Blank entries are skipped.
func ParseHeaders(s string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("malformed header %q: expected key=value", pair)
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers, nil
}
