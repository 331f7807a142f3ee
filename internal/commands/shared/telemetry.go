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

package shared

import (
	"context"
	"log/slog"
	"time"

	"github.com/tombee/apmkit/internal/config"
	"github.com/tombee/apmkit/internal/log"
	"github.com/tombee/apmkit/internal/tracing"
)

// shutdownTimeout bounds the final span flush.
const shutdownTimeout = 5 * time.Second

// StartTracing builds the tracer provider described by cfg.Tracing. The
// returned stop func flushes pending spans and shuts the provider down.
func StartTracing(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tracing.OTelProvider, func(), error) {
	provider, err := tracing.NewFromConfig(ctx, cfg.Tracing)
	if err != nil {
		return nil, nil, NewConfigError("failed to start tracing", err)
	}

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shut down tracing", log.Error(err))
		}
	}
	return provider, stop, nil
}
