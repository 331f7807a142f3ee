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

// Package async carries trace context across asynchronous boundaries.
//
// Context is captured synchronously when work is registered (a callback
// added to a deferred, a function submitted to a pool) and restored when
// that work later runs, so spans started by the callback become children
// of the span that was active at registration time.
package async

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/apmkit/internal/log"
	"github.com/tombee/apmkit/internal/tracing"
)

var snapshotIDs atomic.Uint64

type activeKeyType struct{}

var activeKey = activeKeyType{}

// Option configures instrumentation in this package.
type Option func(*options)

type options struct {
	metrics *tracing.MetricsCollector
	logger  *slog.Logger
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = log.WithComponent(o.logger, "async")
	return o
}

// WithMetrics records restore outcomes into mc.
func WithMetrics(mc *tracing.MetricsCollector) Option {
	return func(o *options) { o.metrics = mc }
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Snapshot is an immutable capture of the trace state visible from a
// context: the active span, baggage, correlation id, origin and forced
// sampling priority.
type Snapshot struct {
	id          uint64
	span        trace.Span
	bag         baggage.Baggage
	correlation tracing.CorrelationID
	origin      string
	priority    int
	hasPriority bool
	opts        options
}

// Capture records the trace state of ctx.
func Capture(ctx context.Context, opts ...Option) Snapshot {
	s := Snapshot{
		id:          snapshotIDs.Add(1),
		span:        trace.SpanFromContext(ctx),
		bag:         baggage.FromContext(ctx),
		correlation: tracing.CorrelationIDFrom(ctx),
		opts:        newOptions(opts),
	}
	s.origin, _ = tracing.OriginFromContext(ctx)
	s.priority, s.hasPriority = tracing.SamplingPriorityFromContext(ctx)
	return s
}

// SpanContext returns the captured span context.
func (s Snapshot) SpanContext() trace.SpanContext {
	if s.span == nil {
		return trace.SpanContext{}
	}
	return s.span.SpanContext()
}

// Context returns parent carrying the captured trace state. Cancellation
// and deadline still come from parent. Values captured as absent are
// cleared so state from parent does not leak into the restored context.
func (s Snapshot) Context(parent context.Context) context.Context {
	ctx := parent
	if s.span != nil {
		ctx = trace.ContextWithSpan(ctx, s.span)
	}
	ctx = baggage.ContextWithBaggage(ctx, s.bag)
	ctx = tracing.WithCorrelationID(ctx, s.correlation)
	ctx = tracing.WithOrigin(ctx, s.origin)
	if s.hasPriority {
		ctx = tracing.WithSamplingPriority(ctx, s.priority)
	} else {
		ctx = tracing.WithoutSamplingPriority(ctx)
	}
	return context.WithValue(ctx, activeKey, s.id)
}

// Active reports whether ctx was produced by this snapshot's Context.
func (s Snapshot) Active(ctx context.Context) bool {
	id, ok := ctx.Value(activeKey).(uint64)
	return ok && id == s.id
}

// Run invokes fn under the restored snapshot. A snapshot that captured
// nothing still replaces the trace state of ctx. Only when the snapshot is
// already active in ctx does fn run with ctx unchanged. Run never fails on
// its own account.
func (s Snapshot) Run(ctx context.Context, fn func(context.Context)) {
	if s.Active(ctx) {
		s.opts.metrics.RecordCallback(ctx, tracing.OutcomeFallback)
		s.opts.logger.DebugContext(ctx, "running callback without restore", "reason", "reentrant")
		fn(ctx)
		return
	}

	s.opts.metrics.RecordCallback(ctx, tracing.OutcomeRestored)
	restored := s.Context(ctx)
	log.Trace(restored, s.opts.logger, "restored trace context",
		slog.String(log.SpanIDKey, s.SpanContext().SpanID().String()),
		slog.String("origin", s.origin),
	)
	fn(restored)
}

// Callback is one step in a callback chain. It receives the previous
// step's result and returns the next.
type Callback func(ctx context.Context, result any) (any, error)

// Bind captures ctx now and returns a Callback that runs cb under that
// capture each time it is invoked.
func Bind(ctx context.Context, cb Callback, opts ...Option) Callback {
	if cb == nil {
		return nil
	}
	snap := Capture(ctx, opts...)
	return snap.bind(cb)
}

func (s Snapshot) bind(cb Callback) Callback {
	if cb == nil {
		return nil
	}
	return func(ctx context.Context, result any) (any, error) {
		var (
			out any
			err error
		)
		s.Run(ctx, func(ctx context.Context) {
			out, err = cb(ctx, result)
		})
		return out, err
	}
}
