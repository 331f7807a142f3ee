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
	"encoding/binary"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Datadog propagation headers.
const (
	HeaderTraceID          = "x-datadog-trace-id"
	HeaderParentID         = "x-datadog-parent-id"
	HeaderSamplingPriority = "x-datadog-sampling-priority"
	HeaderOrigin           = "x-datadog-origin"
)

// traceStateKey is the tracestate member carrying Datadog-only fields.
const traceStateKey = "dd"

// Sampling priorities understood by Datadog agents.
const (
	PriorityUserReject = -1
	PriorityAutoReject = 0
	PriorityAutoKeep   = 1
	PriorityUserKeep   = 2
)

type originKeyType struct{}
type priorityKeyType struct{}

var (
	originKey   = originKeyType{}
	priorityKey = priorityKeyType{}
)

// PropagatedContext is the trace state that crosses process boundaries.
type PropagatedContext struct {
	TraceID          trace.TraceID
	SpanID           trace.SpanID
	SamplingPriority *int
	Origin           string
}

// Valid reports whether the context identifies a span.
func (p PropagatedContext) Valid() bool {
	return p.TraceID.IsValid() && p.SpanID.IsValid()
}

// DatadogTraceID returns the low 64 bits of the trace id, the part the
// Datadog header format carries.
func (p PropagatedContext) DatadogTraceID() uint64 {
	return binary.BigEndian.Uint64(p.TraceID[8:])
}

// DatadogSpanID returns the span id as an unsigned integer.
func (p PropagatedContext) DatadogSpanID() uint64 {
	return binary.BigEndian.Uint64(p.SpanID[:])
}

// WithOrigin returns a context whose outbound requests carry origin
// (for example "ciapp-test" for spans produced by CI test runs).
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey, origin)
}

// WithSamplingPriority returns a context that forces the propagated
// sampling priority.
func WithSamplingPriority(ctx context.Context, priority int) context.Context {
	return context.WithValue(ctx, priorityKey, priority)
}

// WithoutSamplingPriority returns a context in which no priority has been
// forced, hiding any value set by an ancestor.
func WithoutSamplingPriority(ctx context.Context) context.Context {
	return context.WithValue(ctx, priorityKey, nil)
}

// OriginFromContext returns the origin set with WithOrigin.
func OriginFromContext(ctx context.Context) (string, bool) {
	o, ok := ctx.Value(originKey).(string)
	return o, ok && o != ""
}

// SamplingPriorityFromContext returns the priority set with WithSamplingPriority.
func SamplingPriorityFromContext(ctx context.Context) (int, bool) {
	p, ok := ctx.Value(priorityKey).(int)
	return p, ok
}

// CurrentContext resolves the propagated trace state visible from ctx.
// Context values win over the "dd" tracestate member; the sampled flag is
// the last resort for the priority.
func CurrentContext(ctx context.Context) PropagatedContext {
	sc := trace.SpanContextFromContext(ctx)
	pc := PropagatedContext{
		TraceID: sc.TraceID(),
		SpanID:  sc.SpanID(),
	}
	dd := parseDDMember(sc.TraceState().Get(traceStateKey))

	if p, ok := ctx.Value(priorityKey).(int); ok {
		pc.SamplingPriority = &p
	} else if dd.priority != nil {
		pc.SamplingPriority = dd.priority
	} else if sc.IsValid() {
		p := PriorityAutoReject
		if sc.IsSampled() {
			p = PriorityAutoKeep
		}
		pc.SamplingPriority = &p
	}

	if o, ok := ctx.Value(originKey).(string); ok && o != "" {
		pc.Origin = o
	} else {
		pc.Origin = dd.origin
	}
	return pc
}

// DatadogPropagator reads and writes the x-datadog-* header family.
type DatadogPropagator struct{}

var _ propagation.TextMapPropagator = DatadogPropagator{}

// Inject writes the trace state in ctx into carrier. Nothing is written
// when ctx carries no valid span context.
func (DatadogPropagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	pc := CurrentContext(ctx)
	if !pc.Valid() {
		return
	}
	carrier.Set(HeaderTraceID, strconv.FormatUint(pc.DatadogTraceID(), 10))
	carrier.Set(HeaderParentID, strconv.FormatUint(pc.DatadogSpanID(), 10))
	if pc.SamplingPriority != nil {
		carrier.Set(HeaderSamplingPriority, strconv.Itoa(*pc.SamplingPriority))
	}
	if pc.Origin != "" {
		carrier.Set(HeaderOrigin, pc.Origin)
	}
}

// Extract reads Datadog headers from carrier. When ctx already holds a
// valid span context (a W3C traceparent was extracted first) only origin
// and priority are taken from the headers.
func (DatadogPropagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	var priority *int
	if raw := carrier.Get(HeaderSamplingPriority); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			priority = &p
		}
	}
	origin := carrier.Get(HeaderOrigin)

	if !trace.SpanContextFromContext(ctx).IsValid() {
		tid, err := strconv.ParseUint(carrier.Get(HeaderTraceID), 10, 64)
		if err != nil || tid == 0 {
			return ctx
		}
		sid, err := strconv.ParseUint(carrier.Get(HeaderParentID), 10, 64)
		if err != nil || sid == 0 {
			return ctx
		}

		var traceID trace.TraceID
		binary.BigEndian.PutUint64(traceID[8:], tid)
		var spanID trace.SpanID
		binary.BigEndian.PutUint64(spanID[:], sid)

		var flags trace.TraceFlags
		if priority == nil || *priority > 0 {
			flags = trace.FlagsSampled
		}

		state := trace.TraceState{}
		if member := formatDDMember(priority, origin); member != "" {
			if ts, err := state.Insert(traceStateKey, member); err == nil {
				state = ts
			}
		}

		ctx = trace.ContextWithRemoteSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: flags,
			TraceState: state,
			Remote:     true,
		}))
	}

	if priority != nil {
		ctx = WithSamplingPriority(ctx, *priority)
	}
	if origin != "" {
		ctx = WithOrigin(ctx, origin)
	}
	return ctx
}

// Fields returns the header keys this propagator reads.
func (DatadogPropagator) Fields() []string {
	return []string{HeaderTraceID, HeaderParentID, HeaderSamplingPriority, HeaderOrigin}
}

type ddMember struct {
	priority *int
	origin   string
}

// parseDDMember decodes "s:<priority>;o:<origin>".
func parseDDMember(value string) ddMember {
	var m ddMember
	if value == "" {
		return m
	}
	for _, part := range strings.Split(value, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch k {
		case "s":
			if p, err := strconv.Atoi(v); err == nil {
				m.priority = &p
			}
		case "o":
			m.origin = strings.ReplaceAll(v, "~", "=")
		}
	}
	return m
}

func formatDDMember(priority *int, origin string) string {
	var parts []string
	if priority != nil {
		parts = append(parts, "s:"+strconv.Itoa(*priority))
	}
	if origin != "" {
		parts = append(parts, "o:"+sanitizeOrigin(origin))
	}
	return strings.Join(parts, ";")
}

// sanitizeOrigin maps characters that are illegal in a tracestate value.
func sanitizeOrigin(origin string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '=':
			return '~'
		case r == ',' || r == ';' || r < 0x20 || r > 0x7e:
			return '_'
		}
		return r
	}, origin)
}
