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
	"net/http"

	"go.opentelemetry.io/otel/propagation"
)

// Propagator returns the composite propagator used for every outbound and
// inbound carrier: W3C Trace Context, W3C Baggage and Datadog headers.
func Propagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		DatadogPropagator{},
	)
}

// InjectHTTPHeaders writes the trace state of ctx into the headers of req
// with p, or with Propagator when p is nil.
func InjectHTTPHeaders(ctx context.Context, req *http.Request, p propagation.TextMapPropagator) {
	if p == nil {
		p = Propagator()
	}
	p.Inject(ctx, propagation.HeaderCarrier(req.Header))
}
