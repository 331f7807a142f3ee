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

package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tombee/apmkit/internal/commands/shared"
)

const testConfig = `log:
  level: error
http:
  retry_attempts: 0
ci:
  git_backend: go-git
`

func run(t *testing.T, jsonOut bool, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o600))
	restore := shared.SetFlagsForTest(jsonOut, cfgPath)
	defer restore()

	cmd := NewTraceCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"request", "--dir", dir}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRequest_PropagatesUnderOneTrace(t *testing.T) {
	srv := newServer(t)
	envFile := writeEnv(t, "GITLAB_CI=true\nCI_PIPELINE_ID=99\nCI_COMMIT_BRANCH=main\n")

	out, err := run(t, true, "--env-file", envFile, "--concurrency", "2", srv.URL+"/a", srv.URL+"/b", srv.URL+"/c")
	require.NoError(t, err)

	var resp requestResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "gitlab", resp.Provider)
	assert.Equal(t, "ciapp-test", resp.Origin)
	require.Len(t, resp.TraceID, 32)

	require.Len(t, resp.Results, 3)
	for i, suffix := range []string{"/a", "/b", "/c"} {
		r := resp.Results[i]
		assert.Equal(t, srv.URL+suffix, r.URL)
		assert.Equal(t, http.StatusOK, r.Status)
		assert.Empty(t, r.Error)
		assert.Contains(t, r.Headers["traceparent"], resp.TraceID)
		assert.Equal(t, "ciapp-test", r.Headers["x-datadog-origin"])
		assert.NotEmpty(t, r.Headers["x-datadog-trace-id"])
		assert.NotEmpty(t, r.Headers["x-correlation-id"])
	}
	assert.Equal(t, resp.CorrelationID, resp.Results[0].Headers["x-correlation-id"])
	assert.Equal(t, resp.Results[0].Headers["x-correlation-id"], resp.Results[2].Headers["x-correlation-id"])
	assert.NotEqual(t, resp.Results[0].Headers["traceparent"], resp.Results[1].Headers["traceparent"])
}

func TestRequest_NoProviderNoOrigin(t *testing.T) {
	srv := newServer(t)
	envFile := writeEnv(t, "HOME=/tmp\n")

	out, err := run(t, true, "--env-file", envFile, srv.URL)
	require.NoError(t, err)

	var resp requestResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Empty(t, resp.Origin)
	assert.Empty(t, resp.Provider)
	require.Len(t, resp.Results, 1)
	assert.NotContains(t, resp.Results[0].Headers, "x-datadog-origin")
}

func TestRequest_FailureSetsExitCode(t *testing.T) {
	srv := newServer(t)
	envFile := writeEnv(t, "HOME=/tmp\n")

	out, err := run(t, false, "--env-file", envFile, "--rate", "50", srv.URL+"/ok", srv.URL+"/fail")
	require.Error(t, err)
	assert.Equal(t, shared.ExitFailed, shared.ExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 requests failed")
	assert.Contains(t, out, "502")
	assert.Contains(t, out, "traceparent")
}

func TestRequest_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no urls", nil},
		{"bad scheme", []string{"ftp://example.com"}},
		{"zero concurrency", []string{"--concurrency", "0", "http://example.com"}},
		{"negative rate", []string{"--rate", "-1", "http://example.com"}},
		{"unknown exporter", []string{"--exporter", "zipkin", "http://example.com"}},
		{"otlp without endpoint", []string{"--exporter", "otlp", "http://example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, true, tt.args...)
			require.Error(t, err)
			if tt.name != "no urls" {
				assert.Equal(t, shared.ExitInvalidArgs, shared.ExitCode(err))
			}
		})
	}
}

func TestRequest_PrintsMetrics(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(testConfig), 0o600))
	restore := shared.SetFlagsForTest(true, cfgPath)
	defer restore()

	cmd := NewTraceCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"request", "--dir", dir, "--env-file", writeEnv(t, "HOME=/tmp\n"), "--metrics", srv.URL})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, stderr.String(), "apmkit_http_client_requests")
	assert.Contains(t, stderr.String(), "apmkit_async_callbacks")
	assert.NotContains(t, stdout.String(), "apmkit_http_client_requests")
}

func TestRequest_LogsCarryCorrelationID(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := strings.Replace(testConfig, "level: error", "level: warn\n  format: json", 1)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	restore := shared.SetFlagsForTest(true, cfgPath)
	defer restore()

	cmd := NewTraceCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"request", "--dir", dir, "--env-file", writeEnv(t, "HOME=/tmp\n"), srv.URL + "/fail"})
	require.Error(t, cmd.ExecuteContext(context.Background()))

	var resp requestResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	require.NotEmpty(t, resp.CorrelationID)
	assert.Contains(t, stderr.String(), `"msg":"http request"`)
	assert.Contains(t, stderr.String(), `"correlation_id":"`+resp.CorrelationID+`"`)
}
