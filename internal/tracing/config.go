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
	"fmt"
	"time"

	"github.com/tombee/apmkit/internal/tracing/redact"
)

// Config holds observability configuration.
type Config struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled" env:"APMKIT_TRACING_ENABLED,overwrite"`

	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name" env:"APMKIT_SERVICE_NAME,overwrite"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"service_version" env:"APMKIT_SERVICE_VERSION,overwrite"`

	// Sampling configures trace sampling.
	Sampling SamplingConfig `yaml:"sampling"`

	// Exporters configures export destinations.
	Exporters []ExporterConfig `yaml:"exporters"`

	// BatchSize is the maximum number of spans per export batch (default: 512).
	BatchSize int `yaml:"batch_size"`

	// BatchInterval is how often to flush spans (default: 5s).
	BatchInterval time.Duration `yaml:"batch_interval"`

	// Redaction scrubs secrets from span attributes before export:
	// "none", "standard" (default) or "strict".
	Redaction string `yaml:"redaction" env:"APMKIT_TRACING_REDACTION,overwrite"`
}

// SamplingConfig controls which traces are recorded.
type SamplingConfig struct {
	// Enabled activates sampling (default: false - sample all).
	Enabled bool `yaml:"enabled" env:"APMKIT_TRACING_SAMPLING,overwrite"`

	// Type is the strategy: "parent" (ratio for roots, follow the parent
	// otherwise), "ratio" or "deterministic".
	Type string `yaml:"type"`

	// Rate is the fraction of traces to sample (0.0 - 1.0).
	Rate float64 `yaml:"rate" env:"APMKIT_TRACING_SAMPLE_RATE,overwrite"`

	// AlwaysSampleErrors samples all spans started with error=true.
	AlwaysSampleErrors bool `yaml:"always_sample_errors"`
}

// ExporterConfig defines an export destination.
type ExporterConfig struct {
	// Type is the exporter type: "otlp", "otlp-http", "console" or "none".
	Type string `yaml:"type"`

	// Endpoint is the OTLP receiver address.
	Endpoint string `yaml:"endpoint"`

	// Headers are additional headers sent with every export.
	Headers map[string]string `yaml:"headers"`

	// TLS configures secure connections.
	TLS TLSConfig `yaml:"tls"`

	// Timeout is the export timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// TLSConfig configures TLS for exporters.
type TLSConfig struct {
	// Enabled activates TLS.
	Enabled bool `yaml:"enabled"`

	// VerifyCertificate controls certificate validation.
	VerifyCertificate bool `yaml:"verify_certificate"`

	// CACertPath is the path to the CA certificate.
	CACertPath string `yaml:"ca_cert_path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "apmkit",
		ServiceVersion: "unknown",
		Sampling: SamplingConfig{
			Enabled:            false,
			Type:               "parent",
			Rate:               1.0,
			AlwaysSampleErrors: true,
		},
		BatchSize:     512,
		BatchInterval: 5 * time.Second,
		Redaction:     string(redact.ModeStandard),
	}
}

// Validate checks the configuration for values the SDK would reject.
func (c Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Sampling.Rate < 0 || c.Sampling.Rate > 1 {
		return fmt.Errorf("sampling.rate must be between 0 and 1, got %v", c.Sampling.Rate)
	}
	switch c.Sampling.Type {
	case "", "parent", "ratio", "deterministic":
	default:
		return fmt.Errorf("unknown sampling.type %q", c.Sampling.Type)
	}
	if _, ok := redact.ParseMode(c.Redaction); !ok {
		return fmt.Errorf("unknown redaction mode %q", c.Redaction)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be >= 0, got %d", c.BatchSize)
	}
	for i, e := range c.Exporters {
		switch e.Type {
		case "console", "none", "":
		case "otlp", "otlp-http", "otlp_http":
			if e.Endpoint == "" {
				return fmt.Errorf("exporters[%d]: endpoint is required for %s", i, e.Type)
			}
		default:
			return fmt.Errorf("exporters[%d]: unknown exporter type %q", i, e.Type)
		}
	}
	return nil
}
