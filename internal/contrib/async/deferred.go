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

package async

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span tag keys set on a deferred's attached span.
const (
	ErrorMessageKey = "error.message"
	ErrorTypeKey    = "error.type"
	ErrorStackKey   = "error.stack"
)

// Deferred is the part of a host framework's deferred result that
// TracedDeferred needs: registering a callback pair and firing the chain
// with either a result or an error.
type Deferred interface {
	AddCallbacks(callback, errback Callback)
	Callback(ctx context.Context, result any)
	Errback(ctx context.Context, err error)
}

type callbackPair struct {
	callback string
	errback  string
}

// TracedDeferred wraps a Deferred so every callback registered on it runs
// under the trace state captured when the TracedDeferred was created.
type TracedDeferred struct {
	d    Deferred
	snap Snapshot

	mu    sync.Mutex
	span  trace.Span
	pairs []callbackPair
}

var _ Deferred = (*TracedDeferred)(nil)

// Wrap captures ctx and returns d wrapped for context propagation.
func Wrap(ctx context.Context, d Deferred, opts ...Option) *TracedDeferred {
	return &TracedDeferred{
		d:    d,
		snap: Capture(ctx, opts...),
	}
}

// Snapshot returns the capture taken at construction.
func (t *TracedDeferred) Snapshot() Snapshot {
	return t.snap
}

// AttachSpan associates span with the deferred. While the span is
// recording, firing the deferred tags it with the callback chain and
// errors are recorded on it.
func (t *TracedDeferred) AttachSpan(span trace.Span) {
	t.mu.Lock()
	t.span = span
	t.mu.Unlock()
}

// AddCallbacks registers callback and errback, each bound to the
// construction-time snapshot. Either may be nil.
func (t *TracedDeferred) AddCallbacks(callback, errback Callback) {
	t.mu.Lock()
	t.pairs = append(t.pairs, callbackPair{
		callback: funcName(callback),
		errback:  funcName(errback),
	})
	t.mu.Unlock()

	t.d.AddCallbacks(t.snap.bind(callback), t.snap.bind(errback))
}

// AddCallback registers callback with no errback.
func (t *TracedDeferred) AddCallback(callback Callback) {
	t.AddCallbacks(callback, nil)
}

// AddErrback registers errback with no callback.
func (t *TracedDeferred) AddErrback(errback Callback) {
	t.AddCallbacks(nil, errback)
}

// Callback fires the chain with result.
func (t *TracedDeferred) Callback(ctx context.Context, result any) {
	if span, pairs := t.liveSpan(); span != nil {
		attrs := make([]attribute.KeyValue, 0, 2*len(pairs))
		for n, p := range pairs {
			attrs = append(attrs,
				attribute.String("callback."+strconv.Itoa(n), p.callback),
				attribute.String("errback."+strconv.Itoa(n), p.errback),
			)
		}
		span.SetAttributes(attrs...)
	}
	t.d.Callback(ctx, result)
}

// Errback fires the chain with err.
func (t *TracedDeferred) Errback(ctx context.Context, err error) {
	if span, _ := t.liveSpan(); span != nil && err != nil {
		span.SetAttributes(
			attribute.String(ErrorMessageKey, err.Error()),
			attribute.String(ErrorTypeKey, fmt.Sprintf("%T", err)),
		)
		if stack := errorStack(err); stack != "" {
			span.SetAttributes(attribute.String(ErrorStackKey, stack))
		}
		span.SetStatus(codes.Error, err.Error())
	}
	t.d.Errback(ctx, err)
}

// liveSpan returns the attached span and a copy of the registered names
// when the span is still recording.
func (t *TracedDeferred) liveSpan() (trace.Span, []callbackPair) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.span == nil || !t.span.IsRecording() {
		return nil, nil
	}
	return t.span, append([]callbackPair(nil), t.pairs...)
}

// errorStack returns the "%+v" rendering of the first error in err's chain
// that implements fmt.Formatter, which is where errors that record their
// origin (github.com/pkg/errors and similar) print the stack. The stack of
// the goroutine firing the errback says nothing about the failure, so
// errors without one yield "".
func errorStack(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := e.(fmt.Formatter); ok {
			return fmt.Sprintf("%+v", e)
		}
	}
	return ""
}

func funcName(fn Callback) string {
	if fn == nil {
		return ""
	}
	if f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer()); f != nil {
		return f.Name()
	}
	return ""
}
