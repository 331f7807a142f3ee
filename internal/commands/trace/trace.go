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

// Package trace implements the "apmkit trace" commands.
package trace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tombee/apmkit/internal/ci"
	"github.com/tombee/apmkit/internal/cli/format"
	"github.com/tombee/apmkit/internal/commands/completion"
	"github.com/tombee/apmkit/internal/commands/shared"
	"github.com/tombee/apmkit/internal/config"
	"github.com/tombee/apmkit/internal/contrib/async"
	"github.com/tombee/apmkit/internal/contrib/httptrace"
	"github.com/tombee/apmkit/internal/git"
	"github.com/tombee/apmkit/internal/log"
	"github.com/tombee/apmkit/internal/tracing"
)

const instrumentationName = "github.com/tombee/apmkit/internal/commands/trace"

// maxDrain bounds how much of each response body is read before closing.
const maxDrain = 1 << 20

type requestOptions struct {
	concurrency int
	rate        float64
	exporter    string
	endpoint    string
	envFile     string
	dir         string
	metrics     bool
}

// Result is the outcome of one traced request.
type Result struct {
	URL        string            `json:"url"`
	Status     int               `json:"status,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Error      string            `json:"error,omitempty"`
	Headers    map[string]string `json:"propagated_headers,omitempty"`
}

type requestResponse struct {
	shared.JSONResponse
	TraceID       string   `json:"trace_id"`
	CorrelationID string   `json:"correlation_id"`
	Origin        string   `json:"origin,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	Results       []Result `json:"results"`
}

// NewTraceCommand creates the trace command with subcommands.
func NewTraceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Exercise trace propagation",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newRequestCommand())
	return cmd
}

func newRequestCommand() *cobra.Command {
	var opts requestOptions

	cmd := &cobra.Command{
		Use:   "request URL...",
		Short: "Issue traced GET requests under one root span",
		Long: `Issue a GET request to every URL from a worker pool. Each request is a
client span under a shared root span, and its trace context is injected
as W3C and Datadog headers.

When a CI provider is detected the root span carries the CI tags and
the trace origin is set to ciapp-test.

--exporter overrides the configured exporters for this run.`,
		Example: `  # Print spans to stderr while calling two services
  apmkit trace request --exporter console https://a.example https://b.example

  # Send spans to a local collector, two requests per second
  apmkit trace request --exporter otlp --endpoint localhost:4317 --rate 2 https://a.example`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, args, opts)
		},
	}

	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Maximum requests in flight")
	cmd.Flags().Float64Var(&opts.rate, "rate", 0, "Maximum requests started per second (0 means unlimited)")
	cmd.Flags().StringVar(&opts.exporter, "exporter", "", "Span exporter: console, otlp, otlp-http or none")
	cmd.Flags().StringVar(&opts.endpoint, "endpoint", "", "Collector endpoint for otlp exporters")
	cmd.Flags().StringVar(&opts.envFile, "env-file", "", "Read the CI environment from a dotenv file")
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Repository directory for git metadata")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print collected metrics to stderr in Prometheus text format")
	_ = cmd.RegisterFlagCompletionFunc("exporter", completion.CompleteExporters)
	_ = cmd.MarkFlagDirname("dir")

	return cmd
}

func (o requestOptions) validate(urls []string) error {
	if o.concurrency <= 0 {
		return shared.NewInvalidArgsError(fmt.Sprintf("--concurrency must be positive, got %d", o.concurrency), nil)
	}
	if o.rate < 0 {
		return shared.NewInvalidArgsError(fmt.Sprintf("--rate must not be negative, got %v", o.rate), nil)
	}
	switch o.exporter {
	case "", "console", "none":
	case "otlp", "otlp-http":
		if o.endpoint == "" {
			return shared.NewInvalidArgsError("--endpoint is required for --exporter "+o.exporter, nil)
		}
	default:
		return shared.NewInvalidArgsError(fmt.Sprintf("unknown --exporter %q", o.exporter), nil)
	}
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return shared.NewInvalidArgsError(fmt.Sprintf("invalid URL %q", raw), err)
		}
	}
	return nil
}

// applyExporter replaces the configured exporters with the one named on
// the command line.
func (o requestOptions) applyExporter(cfg *config.Config) {
	if o.exporter == "" {
		return
	}
	cfg.Tracing.Enabled = o.exporter != "none"
	cfg.Tracing.Exporters = []tracing.ExporterConfig{{
		Type:     o.exporter,
		Endpoint: o.endpoint,
	}}
}

func runRequest(cmd *cobra.Command, urls []string, opts requestOptions) error {
	if err := opts.validate(urls); err != nil {
		return err
	}

	ctx := cmd.Context()
	cfg, err := shared.LoadConfig(ctx)
	if err != nil {
		return err
	}
	opts.applyExporter(cfg)
	corrID := tracing.NewCorrelationID()
	logger := log.WithCorrelationID(
		log.WithComponent(shared.NewLogger(cfg, cmd.ErrOrStderr()), "trace"),
		corrID.String())

	env := ci.EnvFromOS()
	if opts.envFile != "" {
		if env, err = ci.EnvFromFile(opts.envFile); err != nil {
			return shared.NewInvalidArgsError("failed to read --env-file", err)
		}
	}
	gitExtractor, err := git.New(cfg.CI.GitBackend, logger)
	if err != nil {
		return shared.NewConfigError("invalid git backend", err)
	}

	provider, stop, err := shared.StartTracing(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stop()
	metrics := provider.MetricsCollector()

	tags := ci.NewExtractor(gitExtractor,
		ci.WithLogger(logger),
		ci.WithMetrics(metrics),
	).Tags(ctx, env, opts.dir)

	ctx = tracing.WithCorrelationID(ctx, corrID)
	if tags.Provider() != "" {
		ctx = tracing.WithOrigin(ctx, ci.Origin)
	}
	ctx, root := provider.Tracer(instrumentationName).Start(ctx, "apmkit.trace.request",
		oteltrace.WithAttributes(tagAttributes(tags)...))

	client, err := httptrace.NewClient(cfg.HTTP,
		httptrace.WithTracerProvider(provider.TracerProvider()),
		httptrace.WithMetrics(metrics),
		httptrace.WithLogger(logger),
	)
	if err != nil {
		root.End()
		return shared.NewConfigError("invalid http config", err)
	}

	results := fetchAll(ctx, client, urls, opts, metrics, logger)

	failed := 0
	for _, r := range results {
		if r.Error != "" || r.Status >= 500 {
			failed++
		}
	}
	root.SetAttributes(attribute.Int("apmkit.requests", len(results)))
	if failed > 0 {
		root.SetStatus(codes.Error, fmt.Sprintf("%d of %d requests failed", failed, len(results)))
	}
	traceID := root.SpanContext().TraceID().String()
	root.End()

	if opts.metrics {
		if err := provider.WriteMetrics(cmd.ErrOrStderr()); err != nil {
			logger.Warn("failed to write metrics", log.Error(err))
		}
	}

	origin, _ := tracing.OriginFromContext(ctx)
	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		err = shared.EmitJSON(out, requestResponse{
			JSONResponse: shared.NewJSONResponse("trace request"),
			TraceID:       traceID,
			CorrelationID: corrID.String(),
			Origin:        origin,
			Provider:      tags.Provider(),
			Results:       results,
		})
	} else {
		err = printResults(out, traceID, corrID.String(), origin, results)
	}
	if err != nil {
		return err
	}

	if failed > 0 {
		return shared.NewExecutionError(fmt.Sprintf("%d of %d requests failed", failed, len(results)), nil)
	}
	return nil
}

// fetchAll issues one GET per URL on a worker pool and returns the
// results in argument order.
func fetchAll(ctx context.Context, client *http.Client, urls []string, opts requestOptions, metrics *tracing.MetricsCollector, logger *slog.Logger) []Result {
	poolOpts := []async.PoolOption{
		async.WithConcurrency(opts.concurrency),
		async.WithPoolOptions(async.WithMetrics(metrics), async.WithLogger(logger)),
	}
	if opts.rate > 0 {
		poolOpts = append(poolOpts, async.WithRateLimit(rate.NewLimiter(rate.Limit(opts.rate), 1)))
	}
	pool := async.NewPool(ctx, poolOpts...)

	results := make([]Result, len(urls))
	var mu sync.Mutex
	for i, u := range urls {
		pool.CallWithCallback(ctx,
			func(ctx context.Context) (any, error) {
				return fetch(ctx, client, u)
			},
			func(ok bool, v any) {
				mu.Lock()
				defer mu.Unlock()
				if ok {
					results[i] = v.(Result)
					return
				}
				results[i] = Result{URL: u, Error: v.(error).Error()}
			},
		)
	}
	if err := pool.Wait(); err != nil {
		logger.Warn("worker pool stopped early", log.Error(err))
	}
	return results
}

func fetch(ctx context.Context, client *http.Client, rawURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return Result{
		URL:        rawURL,
		Status:     resp.StatusCode,
		DurationMS: time.Since(start).Milliseconds(),
		Headers:    propagatedHeaders(resp.Request),
	}, nil
}

// propagatedHeaders returns the trace headers sent on req, which is the
// outgoing request as seen by the innermost transport.
func propagatedHeaders(req *http.Request) map[string]string {
	if req == nil {
		return nil
	}
	fields := append(tracing.Propagator().Fields(), tracing.HeaderCorrelationID)
	headers := make(map[string]string)
	for _, f := range fields {
		if v := req.Header.Get(f); v != "" {
			headers[strings.ToLower(f)] = v
		}
	}
	return headers
}

func tagAttributes(tags ci.Tags) []attribute.KeyValue {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, tags[k]))
	}
	return attrs
}

func printResults(w io.Writer, traceID, correlationID, origin string, results []Result) error {
	fmt.Fprintf(w, "%s %s\n", shared.RenderLabel("trace:"), traceID)
	fmt.Fprintf(w, "%s %s\n", shared.RenderLabel("correlation:"), correlationID)
	if origin != "" {
		fmt.Fprintf(w, "%s %s\n", shared.RenderLabel("origin:"), origin)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := strconv.Itoa(r.Status)
		if r.Error != "" {
			status = "error: " + r.Error
		}
		rows = append(rows, []string{
			r.URL,
			status,
			fmt.Sprintf("%dms", r.DurationMS),
			formatHeaders(r.Headers),
		})
	}
	_, err := fmt.Fprintln(w, format.Table([]string{"URL", "STATUS", "DURATION", "PROPAGATED"}, rows))
	return err
}

func formatHeaders(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+headers[k])
	}
	return strings.Join(lines, "\n")
}
