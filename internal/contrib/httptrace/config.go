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

package httptrace

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config controls outbound HTTP instrumentation and the clients built by
// NewClient. Environment variables override values already set.
type Config struct {
	// ServiceName is reported as peer.service unless SplitByDomain is set.
	ServiceName string `yaml:"service_name" env:"APMKIT_HTTP_SERVICE,overwrite"`

	// DistributedTracing injects propagation headers into requests.
	DistributedTracing bool `yaml:"distributed_tracing" env:"APMKIT_HTTP_DISTRIBUTED_TRACING,overwrite"`

	// SplitByDomain reports the request host as peer.service.
	SplitByDomain bool `yaml:"split_by_domain" env:"APMKIT_HTTP_SPLIT_BY_DOMAIN,overwrite"`

	// SpanName names the client span.
	SpanName string `yaml:"span_name" env:"APMKIT_HTTP_SPAN_NAME,overwrite"`

	// UserAgent is set on requests that carry none.
	UserAgent string `yaml:"user_agent" env:"APMKIT_HTTP_USER_AGENT,overwrite"`

	// Timeout bounds a whole request including retries.
	Timeout time.Duration `yaml:"timeout" env:"APMKIT_HTTP_TIMEOUT,overwrite"`

	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int `yaml:"retry_attempts" env:"APMKIT_HTTP_RETRY_ATTEMPTS,overwrite"`

	// RetryBackoff is the delay before the first retry.
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"APMKIT_HTTP_RETRY_BACKOFF,overwrite"`

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration `yaml:"max_backoff" env:"APMKIT_HTTP_MAX_BACKOFF,overwrite"`

	// AllowNonIdempotentRetry enables retry for POST, PUT, PATCH and DELETE.
	AllowNonIdempotentRetry bool `yaml:"allow_non_idempotent_retry" env:"APMKIT_HTTP_ALLOW_NON_IDEMPOTENT_RETRY,overwrite"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName:        "http-client",
		DistributedTracing: true,
		SplitByDomain:      false,
		SpanName:           "http.request",
		UserAgent:          "apmkit/1.0",
		Timeout:            30 * time.Second,
		RetryAttempts:      3,
		RetryBackoff:       100 * time.Millisecond,
		MaxBackoff:         30 * time.Second,
	}
}

// ConfigFromEnv returns DefaultConfig overlaid with the process environment.
func ConfigFromEnv(ctx context.Context) (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read http config from environment: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays values found by lookuper onto cfg.
func ApplyEnv(ctx context.Context, cfg *Config, lookuper envconfig.Lookuper) error {
	return envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	})
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SpanName == "" {
		return fmt.Errorf("span_name is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be >= 0, got %d", c.RetryAttempts)
	}
	if c.RetryAttempts > 0 {
		if c.RetryBackoff <= 0 {
			return fmt.Errorf("retry_backoff must be > 0 when retry_attempts > 0, got %v", c.RetryBackoff)
		}
		if c.MaxBackoff < c.RetryBackoff {
			return fmt.Errorf("max_backoff (%v) must be >= retry_backoff (%v)", c.MaxBackoff, c.RetryBackoff)
		}
	}
	return nil
}
