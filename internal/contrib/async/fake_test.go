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
	"sync"
)

// chainDeferred is a minimal deferred: callbacks run in registration order,
// each receiving the previous result. A callback returning an error
// switches the chain to errbacks. Callbacks added after firing run
// immediately.
type chainDeferred struct {
	mu      sync.Mutex
	pairs   []callbackFuncs
	fired   bool
	ctx     context.Context
	current any
	failed  bool
}

type callbackFuncs struct {
	callback Callback
	errback  Callback
}

func (d *chainDeferred) AddCallbacks(callback, errback Callback) {
	d.mu.Lock()
	d.pairs = append(d.pairs, callbackFuncs{callback, errback})
	fired := d.fired
	d.mu.Unlock()

	if fired {
		d.run()
	}
}

func (d *chainDeferred) Callback(ctx context.Context, result any) {
	d.fire(ctx, result, false)
}

func (d *chainDeferred) Errback(ctx context.Context, err error) {
	d.fire(ctx, err, true)
}

func (d *chainDeferred) fire(ctx context.Context, v any, failed bool) {
	d.mu.Lock()
	if d.fired {
		d.mu.Unlock()
		panic("deferred already fired")
	}
	d.fired, d.ctx, d.current, d.failed = true, ctx, v, failed
	d.mu.Unlock()
	d.run()
}

func (d *chainDeferred) run() {
	for {
		d.mu.Lock()
		if len(d.pairs) == 0 {
			d.mu.Unlock()
			return
		}
		next := d.pairs[0]
		d.pairs = d.pairs[1:]
		ctx, current, failed := d.ctx, d.current, d.failed
		d.mu.Unlock()

		fn := next.callback
		if failed {
			fn = next.errback
		}
		if fn == nil {
			continue
		}

		out, err := fn(ctx, current)

		d.mu.Lock()
		if err != nil {
			d.current, d.failed = err, true
		} else {
			d.current, d.failed = out, false
		}
		d.mu.Unlock()
	}
}

// Result returns the last value in the chain and whether it is an error.
func (d *chainDeferred) Result() (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.failed
}
