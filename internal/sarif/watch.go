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

package sarif

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tombee/apmkit/internal/log"
)

// DefaultDebounce is how long Watch waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configures (*Filterer).Watch.
type WatchOptions struct {
	// Debounce delays re-filtering until no write has been seen for this
	// long. Defaults to DefaultDebounce.
	Debounce time.Duration

	// OnResult is called after every pass, including the initial one.
	OnResult func(Stats, error)

	Logger *slog.Logger
}

// Watch filters in into out now and again after every change to in,
// until ctx is done. The parent directory is watched so editors and tools
// that replace the file by rename are picked up.
func (f *Filterer) Watch(ctx context.Context, in, out string, opts WatchOptions) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = log.WithComponent(logger, "sarif-watch")

	absIn, err := filepath.Abs(in)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(absIn)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absIn), err)
	}

	var mu sync.Mutex
	run := func() {
		mu.Lock()
		defer mu.Unlock()
		start := time.Now()
		stats, err := f.FilterFile(ctx, absIn, out)
		if err != nil {
			logger.Error("failed to filter report", "in", absIn, log.Error(err))
		} else {
			logger.Info("report filtered",
				"in", absIn,
				"out", out,
				"removed", stats.Removed,
				"kept", stats.Kept(),
				log.Duration(time.Since(start)),
			)
		}
		if opts.OnResult != nil {
			opts.OnResult(stats, err)
		}
	}

	run()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absIn {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			logger.Debug("report changed", "op", event.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(opts.Debounce, run)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("file watcher error", log.Error(err))
		}
	}
}

// Watch is a convenience wrapper around New and (*Filterer).Watch.
func Watch(ctx context.Context, in, out string, ignore []string) error {
	f, err := New(ignore)
	if err != nil {
		return err
	}
	return f.Watch(ctx, in, out, WatchOptions{})
}
