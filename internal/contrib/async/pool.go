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

package async

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithConcurrency caps the number of functions running at once. Submitting
// beyond the cap blocks until a worker frees up. n <= 0 means unlimited.
func WithConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.g.SetLimit(n)
		}
	}
}

// WithRateLimit limits how often workers start functions.
func WithRateLimit(l *rate.Limiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// WithPoolOptions applies instrumentation options to every submission.
func WithPoolOptions(opts ...Option) PoolOption {
	return func(p *Pool) { p.opts = append(p.opts, opts...) }
}

// Pool runs functions on worker goroutines. Each function runs under the
// trace state of the context it was submitted with, on top of the pool's
// own context for cancellation.
type Pool struct {
	ctx     context.Context
	g       *errgroup.Group
	limiter *rate.Limiter
	opts    []Option
}

// NewPool creates a pool whose workers stop early when ctx is cancelled.
func NewPool(ctx context.Context, opts ...PoolOption) *Pool {
	p := &Pool{
		ctx: ctx,
		g:   new(errgroup.Group),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CallWithCallback runs fn on a worker and then calls onResult with
// ok=true and fn's result, or ok=false and the error. The trace state of
// ctx is captured now and restored around fn. onResult runs on the worker
// outside the restored state.
func (p *Pool) CallWithCallback(ctx context.Context, fn func(context.Context) (any, error), onResult func(ok bool, result any)) {
	snap := Capture(ctx, p.opts...)
	mc := snap.opts.metrics
	mc.IncrementPending()

	p.g.Go(func() error {
		defer mc.DecrementPending()

		var (
			out any
			err error
		)
		if err = p.wait(); err == nil {
			snap.Run(p.ctx, func(ctx context.Context) {
				out, err = fn(ctx)
			})
		}

		if onResult == nil {
			return nil
		}
		if err != nil {
			onResult(false, err)
		} else {
			onResult(true, out)
		}
		return nil
	})
}

// Go runs fn on a worker under the trace state of ctx. The first error
// returned by any fn is reported by Wait.
func (p *Pool) Go(ctx context.Context, fn func(context.Context) error) {
	snap := Capture(ctx, p.opts...)
	mc := snap.opts.metrics
	mc.IncrementPending()

	p.g.Go(func() error {
		defer mc.DecrementPending()

		if err := p.wait(); err != nil {
			return err
		}
		var err error
		snap.Run(p.ctx, func(ctx context.Context) {
			err = fn(ctx)
		})
		return err
	})
}

// Wait blocks until every submitted function has finished.
func (p *Pool) Wait() error {
	return p.g.Wait()
}

func (p *Pool) wait() error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(p.ctx)
}
