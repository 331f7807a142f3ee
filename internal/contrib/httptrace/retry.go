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
	"errors"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Span attribute keys set on every attempt after the first.
const (
	ResendCountKey = "http.request.resend_count"
	RetryReasonKey = "http.retry.reason"
)

type resendKey struct{}

// resend describes why an attempt is a repeat of an earlier one.
type resend struct {
	count  int
	reason string
}

func resendFrom(ctx context.Context) (resend, bool) {
	r, ok := ctx.Value(resendKey{}).(resend)
	return r, ok
}

// transientMessages are substrings of dial and read errors worth another
// attempt. The matched substring becomes the retry reason.
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"network unreachable",
	"temporary failure in name resolution",
	"eof",
}

// retryPolicy decides whether a failed attempt is sent again and how long
// to wait first.
type retryPolicy struct {
	retries   int
	base      time.Duration
	max       time.Duration
	anyMethod bool
}

func policyFor(cfg Config) retryPolicy {
	return retryPolicy{
		retries:   cfg.RetryAttempts,
		base:      cfg.RetryBackoff,
		max:       cfg.MaxBackoff,
		anyMethod: cfg.AllowNonIdempotentRetry,
	}
}

// covers reports whether req may be sent more than once. Only GET, HEAD
// and OPTIONS are unless non-idempotent retry is enabled.
func (p retryPolicy) covers(req *http.Request) bool {
	if p.anyMethod {
		return true
	}
	switch strings.ToUpper(req.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// backoff returns the wait before resend n (1-based): base doubled per
// resend, capped at max, plus up to 20% jitter.
func (p retryPolicy) backoff(n int) time.Duration {
	d := p.base
	for i := 1; i < n && d < p.max; i++ {
		d *= 2
	}
	d = min(d, p.max)
	return d + time.Duration(rand.Float64()*0.2*float64(d))
}

// wait returns the backoff for resend n, shortened to the server's
// Retry-After when that is sooner.
func (p retryPolicy) wait(n int, resp *http.Response) time.Duration {
	d := p.backoff(n)
	if resp != nil {
		if ra := parseRetryAfter(resp); ra > 0 && ra < d {
			d = ra
		}
	}
	return d
}

// retryReason returns why the outcome of an attempt is transient, or ""
// when it should be returned to the caller as is.
func retryReason(resp *http.Response, err error) string {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return ""
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "timeout"
		}
		msg := strings.ToLower(err.Error())
		for _, m := range transientMessages {
			if strings.Contains(msg, m) {
				return m
			}
		}
		return ""
	}
	switch code := resp.StatusCode; {
	case code >= 500 && code < 600, code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return "status " + strconv.Itoa(code)
	}
	return ""
}

// retryTransport re-sends transient failures through next. It wraps
// Transport, so each attempt is its own client span carrying its resend
// count and the reason the previous attempt was abandoned.
type retryTransport struct {
	next   http.RoundTripper
	policy retryPolicy
}

func newRetryTransport(next http.RoundTripper, cfg Config) *retryTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &retryTransport{next: next, policy: policyFor(cfg)}
}

// RoundTrip implements http.RoundTripper. When retries run out the last
// response is returned with its body unread.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.policy.covers(req) {
		return t.next.RoundTrip(req)
	}
	ctx := req.Context()

	for n := 1; ; n++ {
		resp, err := t.next.RoundTrip(req)
		reason := retryReason(resp, err)
		if reason == "" || n > t.policy.retries {
			return resp, err
		}
		delay := t.policy.wait(n, resp)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		if req, err = resendRequest(req, resend{count: n, reason: reason}); err != nil {
			return nil, err
		}
	}
}

// resendRequest clones req for another attempt, rewinding the body when
// the request allows it.
func resendRequest(req *http.Request, r resend) (*http.Request, error) {
	next := req.Clone(context.WithValue(req.Context(), resendKey{}, r))
	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		next.Body = body
	}
	return next, nil
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date.
func parseRetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}
