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

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func samplingParams(traceID trace.TraceID, attrs ...attribute.KeyValue) sdktrace.SamplingParameters {
	return sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       traceID,
		Name:          "op",
		Attributes:    attrs,
	}
}

func TestNewSampler_DisabledSamplesAll(t *testing.T) {
	s := NewSampler(SamplerConfig{Enabled: false, Rate: 0})
	res := s.ShouldSample(samplingParams(trace.TraceID{1}))
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestNewSampler_ZeroRateDropsUnlessError(t *testing.T) {
	s := NewSampler(SamplerConfig{Enabled: true, Type: "ratio", Rate: 0, AlwaysSampleErrors: true})

	res := s.ShouldSample(samplingParams(trace.TraceID{1}))
	assert.Equal(t, sdktrace.Drop, res.Decision)

	res = s.ShouldSample(samplingParams(trace.TraceID{1}, attribute.Bool("error", true)))
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestNewSampler_ParentBasedFollowsSampledParent(t *testing.T) {
	s := NewSampler(SamplerConfig{Enabled: true, Type: "parent", Rate: 0})

	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	params := samplingParams(trace.TraceID{1})
	params.ParentContext = trace.ContextWithRemoteSpanContext(context.Background(), parent)

	res := s.ShouldSample(params)
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)
}

func TestDeterministicSampler_Consistent(t *testing.T) {
	s := NewDeterministicSampler(0.5)
	id := trace.TraceID{0, 0, 0, 0, 0, 0, 0, 0, 9, 8, 7, 6, 5, 4, 3, 2}

	first := s.ShouldSample(samplingParams(id)).Decision
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.ShouldSample(samplingParams(id)).Decision)
	}
	assert.Equal(t, "DeterministicSampler{rate=0.5}", s.Description())
}

func TestDeterministicSampler_Bounds(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), NewDeterministicSampler(1.5).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), NewDeterministicSampler(0).Description())
}
