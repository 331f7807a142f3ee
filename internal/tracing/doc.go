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

/*
Package tracing is the OpenTelemetry core shared by apmkit's instrumentation.

It owns the tracer and meter providers, the exporters spans are shipped
through, and the propagators that carry trace context across process
boundaries.

# Quick Start

	provider, err := tracing.NewOTelProviderWithConfig(tracing.Config{
	    Enabled:     true,
	    ServiceName: "checkout",
	    Sampling:    tracing.SamplingConfig{Enabled: true, Type: "ratio", Rate: 0.25},
	})
	if err != nil {
	    return err
	}
	defer provider.Shutdown(ctx)

	ctx, span := provider.Tracer("checkout").Start(ctx, "charge")
	defer span.End()

# Propagation

Propagator returns a composite of W3C Trace Context, W3C Baggage and the
Datadog header format:

	x-datadog-trace-id           low 64 bits of the trace id, decimal
	x-datadog-parent-id          span id, decimal
	x-datadog-sampling-priority  only when known
	x-datadog-origin             only when set

Origin and sampling priority travel inside the process either as context
values (WithOrigin, WithSamplingPriority) or in the "dd" tracestate member,
and CurrentContext resolves both into a PropagatedContext.

# Metrics

MetricsCollector records instrumentation counters on the provider's meter.
They are served in Prometheus text format by OTelProvider.MetricsHandler:

  - apmkit_async_callbacks_total{outcome}
  - apmkit_http_client_requests_total{status_class}
  - apmkit_http_client_duration_seconds
  - apmkit_sql_interactions_total{outcome}
  - apmkit_ci_tag_extractions_total{provider}
*/
package tracing
