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

// Package history persists extracted CI tag sets in SQLite.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/apmkit/internal/ci"
	"github.com/tombee/apmkit/internal/contrib/sqltrace"
)

// DefaultListLimit is used when List is called with a non-positive limit.
const DefaultListLimit = 20

// Entry is one recorded tag set.
type Entry struct {
	ID         int64
	RecordedAt time.Time
	Provider   string
	Tags       ci.Tags
}

// Store is a SQLite-backed history of tag sets.
type Store struct {
	pool *sqltrace.Pool
	now  func() time.Time
}

// Open opens (creating if needed) the database at path and applies the
// schema. The special path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, opts ...sqltrace.Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := path
	if path != ":memory:" {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	pool, err := sqltrace.Open("sqlite", connStr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	pool.DB().SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.PingContext(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{pool: pool, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS extractions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			recorded_at INTEGER NOT NULL,
			provider TEXT NOT NULL,
			tags TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_extractions_provider ON extractions(provider)`,
	}
	return s.pool.RunInteraction(ctx, func(ctx context.Context, tx *sqltrace.Tx) error {
		for _, m := range migrations {
			if _, err := tx.ExecContext(ctx, m); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
		}
		return nil
	})
}

// Record stores tags and returns the new entry's id.
func (s *Store) Record(ctx context.Context, tags ci.Tags) (int64, error) {
	data, err := json.Marshal(tags)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal tags: %w", err)
	}

	var id int64
	err = s.pool.RunInteraction(ctx, func(ctx context.Context, tx *sqltrace.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO extractions (recorded_at, provider, tags) VALUES (?, ?, ?)`,
			s.now().UnixNano(), tags.Provider(), string(data),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record tags: %w", err)
	}
	return id, nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.pool.QueryContext(ctx,
		`SELECT id, recorded_at, provider, tags FROM extractions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			recorded int64
			data     string
		)
		if err := rows.Scan(&e.ID, &recorded, &e.Provider, &data); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &e.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags for entry %d: %w", e.ID, err)
		}
		e.RecordedAt = time.Unix(0, recorded)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.pool.Close()
}
