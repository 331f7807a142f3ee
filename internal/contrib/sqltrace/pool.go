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

// Package sqltrace traces database interactions run through a connection
// pool. An interaction is a function run inside one transaction; every
// statement it issues becomes a child span of the interaction span.
package sqltrace

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/apmkit/internal/contrib/async"
	"github.com/tombee/apmkit/internal/log"
	"github.com/tombee/apmkit/internal/tracing"
)

const instrumentationName = "github.com/tombee/apmkit/internal/contrib/sqltrace"

// Span names and attribute keys.
const (
	InteractionSpanName = "sql.interaction"
	QuerySpanName       = "sql.query"

	SystemKey    = "db.system"
	StatementKey = "db.statement"
)

// Option configures a Pool.
type Option func(*Pool)

// WithTracerProvider sets the provider spans are started on.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(p *Pool) { p.tracer = tp.Tracer(instrumentationName) }
}

// WithSystem sets the db.system attribute, for example "sqlite".
func WithSystem(system string) Option {
	return func(p *Pool) { p.system = system }
}

// WithMetrics records interaction outcomes into mc.
func WithMetrics(mc *tracing.MetricsCollector) Option {
	return func(p *Pool) { p.metrics = mc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// Pool is a traced *sql.DB.
type Pool struct {
	db      *sql.DB
	tracer  trace.Tracer
	system  string
	metrics *tracing.MetricsCollector
	logger  *slog.Logger
}

// Open opens a database and wraps it. db.system defaults to driverName.
func Open(driverName, dsn string, opts ...Option) (*Pool, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	return Wrap(db, append([]Option{WithSystem(driverName)}, opts...)...), nil
}

// Wrap instruments an existing database handle.
func Wrap(db *sql.DB, opts ...Option) *Pool {
	p := &Pool{
		db:     db,
		system: "sql",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	p.logger = log.WithComponent(p.logger, "sqltrace")
	return p
}

// DB returns the underlying handle.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the underlying handle.
func (p *Pool) Close() error {
	return p.db.Close()
}

// PingContext verifies a connection can be established.
func (p *Pool) PingContext(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// RunInteraction runs fn inside a transaction under a sql.interaction
// span. The transaction commits when fn returns nil and rolls back
// otherwise.
func (p *Pool) RunInteraction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, InteractionSpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(SystemKey, p.system)),
	)
	defer func() {
		outcome := "commit"
		if err != nil {
			outcome = "rollback"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		p.metrics.RecordSQLInteraction(ctx, outcome)
		log.WithSpan(ctx, p.logger).Debug("sql interaction finished",
			"outcome", outcome,
			log.Duration(time.Since(start)),
		)
		span.End()
	}()

	sqlTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, &Tx{tx: sqlTx, pool: p}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RunInteractionAsync submits the interaction to workers and reports its
// result through onResult. The interaction runs under the trace state of
// ctx even though it executes on another goroutine.
func (p *Pool) RunInteractionAsync(ctx context.Context, workers *async.Pool, fn func(ctx context.Context, tx *Tx) error, onResult func(error)) {
	workers.CallWithCallback(ctx, func(ctx context.Context) (any, error) {
		return nil, p.RunInteraction(ctx, fn)
	}, func(ok bool, result any) {
		if onResult == nil {
			return
		}
		if ok {
			onResult(nil)
			return
		}
		err, _ := result.(error)
		onResult(err)
	})
}

// ExecContext executes a statement outside any interaction.
func (p *Pool) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := p.startQuery(ctx, query)
	res, err := p.db.ExecContext(ctx, query, args...)
	endQuery(span, err)
	return res, err
}

// QueryContext runs a query outside any interaction.
func (p *Pool) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := p.startQuery(ctx, query)
	rows, err := p.db.QueryContext(ctx, query, args...)
	endQuery(span, err)
	return rows, err
}

// QueryRowContext runs a single-row query outside any interaction.
func (p *Pool) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, span := p.startQuery(ctx, query)
	row := p.db.QueryRowContext(ctx, query, args...)
	endQuery(span, row.Err())
	return row
}

func (p *Pool) startQuery(ctx context.Context, query string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, QuerySpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(SystemKey, p.system),
			attribute.String(StatementKey, query),
		),
	)
}

func endQuery(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Tx is a transaction handed to an interaction function.
type Tx struct {
	tx   *sql.Tx
	pool *Pool
}

// ExecContext executes a statement in the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, span := t.pool.startQuery(ctx, query)
	res, err := t.tx.ExecContext(ctx, query, args...)
	endQuery(span, err)
	return res, err
}

// QueryContext runs a query in the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx, span := t.pool.startQuery(ctx, query)
	rows, err := t.tx.QueryContext(ctx, query, args...)
	endQuery(span, err)
	return rows, err
}

// QueryRowContext runs a single-row query in the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx, span := t.pool.startQuery(ctx, query)
	row := t.tx.QueryRowContext(ctx, query, args...)
	endQuery(span, row.Err())
	return row
}
