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
	"strconv"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SamplerConfig configures trace sampling behavior
type SamplerConfig struct {
	// Enabled controls whether sampling is active
	Enabled bool

	// Type selects the strategy: "parent", "ratio" or "deterministic"
	Type string

	// Rate is the sampling rate (0.0 - 1.0)
	Rate float64

	// AlwaysSampleErrors ensures error spans are always sampled
	AlwaysSampleErrors bool
}

// NewSampler creates an OpenTelemetry sampler based on the configuration.
// Distributed callers that already decided (sampled flag or a Datadog
// priority on the incoming headers) are honored by the "parent" type.
func NewSampler(cfg SamplerConfig) sdktrace.Sampler {
	if !cfg.Enabled || cfg.Rate >= 1.0 {
		return sdktrace.AlwaysSample()
	}

	var base sdktrace.Sampler
	switch {
	case cfg.Rate <= 0.0:
		base = sdktrace.NeverSample()
	case cfg.Type == "deterministic":
		base = NewDeterministicSampler(cfg.Rate)
	default:
		base = sdktrace.TraceIDRatioBased(cfg.Rate)
	}

	if cfg.Type == "" || cfg.Type == "parent" {
		base = sdktrace.ParentBased(base)
	}

	if cfg.AlwaysSampleErrors {
		return &errorAwareSampler{baseSampler: base}
	}
	return base
}

// errorAwareSampler wraps a base sampler to always sample error spans
type errorAwareSampler struct {
	baseSampler sdktrace.Sampler
}

// ShouldSample implements the Sampler interface
func (s *errorAwareSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range params.Attributes {
		if attr.Key == "error" && attr.Value.AsBool() {
			return sdktrace.SamplingResult{
				Decision:   sdktrace.RecordAndSample,
				Tracestate: trace.SpanContextFromContext(params.ParentContext).TraceState(),
			}
		}
	}
	return s.baseSampler.ShouldSample(params)
}

// Description returns a description of the sampler
func (s *errorAwareSampler) Description() string {
	return "ErrorAwareSampler{base=" + s.baseSampler.Description() + "}"
}

// deterministicSampler makes the same decision for the same trace id, so
// services that share a trace agree on it without coordination.
type deterministicSampler struct {
	rate float64
}

// NewDeterministicSampler creates a sampler that makes consistent decisions
// based on trace ID.
func NewDeterministicSampler(rate float64) sdktrace.Sampler {
	if rate >= 1.0 {
		return sdktrace.AlwaysSample()
	}
	if rate <= 0.0 {
		return sdktrace.NeverSample()
	}
	return &deterministicSampler{rate: rate}
}

// ShouldSample implements the Sampler interface
func (s *deterministicSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	traceID := params.TraceID

	// Hash the low 8 bytes, the part Datadog propagates.
	var hash uint64
	for i := 8; i < 16; i++ {
		hash = hash*31 + uint64(traceID[i])
	}
	normalized := float64(hash) / float64(^uint64(0))

	decision := sdktrace.Drop
	if normalized < s.rate {
		decision = sdktrace.RecordAndSample
	}

	return sdktrace.SamplingResult{
		Decision:   decision,
		Tracestate: trace.SpanContextFromContext(params.ParentContext).TraceState(),
	}
}

// Description returns a description of the sampler
func (s *deterministicSampler) Description() string {
	return "DeterministicSampler{rate=" + strconv.FormatFloat(s.rate, 'f', -1, 64) + "}"
}
