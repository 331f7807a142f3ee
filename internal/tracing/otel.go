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
	"io"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// OTelProvider owns the tracer and meter providers for one process.
type OTelProvider struct {
	tp               *sdktrace.TracerProvider
	mp               *metric.MeterProvider
	registry         *promclient.Registry
	metricsCollector *MetricsCollector
}

// NewFromConfig builds the exporters named in cfg and a provider that
// batches spans into them. Exporters that fail to build are logged and
// skipped.
func NewFromConfig(ctx context.Context, cfg Config, opts ...sdktrace.TracerProviderOption) (*OTelProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracing config: %w", err)
	}

	if cfg.Enabled {
		processors, err := CreateExportersFromConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		for _, p := range processors {
			opts = append(opts, sdktrace.WithSpanProcessor(p))
		}
	}

	return NewOTelProviderWithConfig(cfg, opts...)
}

// NewOTelProviderWithConfig creates a provider whose sampler follows cfg.
func NewOTelProviderWithConfig(cfg Config, opts ...sdktrace.TracerProviderOption) (*OTelProvider, error) {
	sampler := NewSampler(SamplerConfig{
		Enabled:            cfg.Sampling.Enabled,
		Type:               cfg.Sampling.Type,
		Rate:               cfg.Sampling.Rate,
		AlwaysSampleErrors: cfg.Sampling.AlwaysSampleErrors,
	})

	allOpts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sampler),
	}, opts...)

	return NewOTelProvider(cfg.ServiceName, cfg.ServiceVersion, allOpts...)
}

// NewOTelProvider creates a provider, installs it as the global tracer
// provider and installs Propagator as the global propagator.
func NewOTelProvider(serviceName, version string, opts ...sdktrace.TracerProviderOption) (*OTelProvider, error) {
	// Empty schema URL avoids a conflict when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	allOpts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
	}, opts...)

	tp := sdktrace.NewTracerProvider(allOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(Propagator())

	// Each provider gets its own registry so several can coexist in one process.
	registry := promclient.NewRegistry()
	promExporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)

	metricsCollector, err := NewMetricsCollector(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	return &OTelProvider{
		tp:               tp,
		mp:               mp,
		registry:         registry,
		metricsCollector: metricsCollector,
	}, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *OTelProvider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// TracerProvider exposes the SDK provider for instrumentation options.
func (p *OTelProvider) TracerProvider() trace.TracerProvider {
	return p.tp
}

// Shutdown flushes any pending spans and releases resources.
func (p *OTelProvider) Shutdown(ctx context.Context) error {
	if err := p.tp.Shutdown(ctx); err != nil {
		return err
	}
	if p.mp != nil {
		return p.mp.Shutdown(ctx)
	}
	return nil
}

// ForceFlush exports all pending spans synchronously.
func (p *OTelProvider) ForceFlush(ctx context.Context) error {
	if err := p.tp.ForceFlush(ctx); err != nil {
		return err
	}
	if p.mp != nil {
		return p.mp.ForceFlush(ctx)
	}
	return nil
}

// MetricsCollector returns the collector instrumented packages record into.
func (p *OTelProvider) MetricsCollector() *MetricsCollector {
	return p.metricsCollector
}

// MetricsHandler serves the provider's metrics in Prometheus text format.
func (p *OTelProvider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// WriteMetrics writes the provider's current metrics to w in Prometheus
// text format.
func (p *OTelProvider) WriteMetrics(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
