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

package export

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSOptions describes how an exporter connection is secured.
type TLSOptions struct {
	Enabled           bool
	VerifyCertificate bool
	CACertPath        string
	ServerName        string
}

// LoadTLS builds a tls.Config from opts. Returns nil when TLS is disabled.
func LoadTLS(opts TLSOptions) (*tls.Config, error) {
	if !opts.Enabled {
		return nil, nil
	}

	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: opts.ServerName,
		// #nosec G402 -- verification is only disabled on explicit request
		InsecureSkipVerify: !opts.VerifyCertificate,
	}

	switch {
	case opts.CACertPath != "":
		pem, err := os.ReadFile(opts.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", opts.CACertPath)
		}
		cfg.RootCAs = pool
	case opts.VerifyCertificate:
		pool, err := x509.SystemCertPool()
		if err != nil {
			return nil, fmt.Errorf("failed to load system cert pool: %w", err)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// CheckTLS rejects configurations below TLS 1.2.
func CheckTLS(cfg *tls.Config) error {
	if cfg == nil {
		return fmt.Errorf("TLS config is nil")
	}
	if cfg.MinVersion < tls.VersionTLS12 {
		return fmt.Errorf("minimum TLS version must be 1.2 or higher, got %d", cfg.MinVersion)
	}
	return nil
}
