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

	"github.com/google/uuid"
)

// CorrelationID ties the log lines of one apmkit invocation to the
// requests it sends. It rides along with the rest of the trace state, so
// callbacks that run after an async hand-off log the same id.
type CorrelationID string

// HeaderCorrelationID carries the correlation id on outbound requests.
const HeaderCorrelationID = "X-Correlation-ID"

type correlationKey struct{}

// NewCorrelationID returns a random UUID.
func NewCorrelationID() CorrelationID {
	return CorrelationID(uuid.NewString())
}

func (c CorrelationID) String() string { return string(c) }

// IsValid reports whether c is a hyphenated UUID.
func (c CorrelationID) IsValid() bool {
	if len(c) != 36 {
		return false
	}
	_, err := uuid.Parse(string(c))
	return err == nil
}

// WithCorrelationID returns ctx carrying id. An empty id hides any id set
// by an ancestor.
func WithCorrelationID(ctx context.Context, id CorrelationID) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationIDFrom returns the id carried by ctx, or "".
func CorrelationIDFrom(ctx context.Context) CorrelationID {
	id, _ := ctx.Value(correlationKey{}).(CorrelationID)
	return id
}

// InjectCorrelationID sets X-Correlation-ID on req when ctx carries a
// valid id.
func InjectCorrelationID(ctx context.Context, req *http.Request) {
	if id := CorrelationIDFrom(ctx); id.IsValid() {
		req.Header.Set(HeaderCorrelationID, id.String())
	}
}
