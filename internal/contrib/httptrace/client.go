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
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// NewClient builds an HTTP client whose requests are traced and, when
// cfg.RetryAttempts > 0, retried. Each attempt is its own client span.
func NewClient(cfg Config, opts ...Option) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var rt http.RoundTripper = NewTransport(base, append([]Option{WithConfig(cfg)}, opts...)...)
	if cfg.RetryAttempts > 0 {
		rt = newRetryTransport(rt, cfg)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}, nil
}
