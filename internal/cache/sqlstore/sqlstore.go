// Package sqlstore keeps cache records as rows of a single SQLite table,
// one document per id.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
)

const backendName = "sqlite"

const schema = `CREATE TABLE IF NOT EXISTS cache_records (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	headers TEXT NOT NULL,
	timestamp TEXT NOT NULL,
	content BLOB
)`

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and makes sure the table
// exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", path, err)
	}
	// a single connection serializes writers and keeps ":memory:" databases
	// from being split across connections
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{schema, "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlstore: init %s: %w", path, err)
		}
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, id string) (cache.Record, bool, error) {
	var (
		doc     cache.Document
		headers string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT url, headers, timestamp, content FROM cache_records WHERE id = ?", id,
	).Scan(&doc.URL, &headers, &doc.Timestamp, &doc.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Record{}, false, nil
	}
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseReadFailure, err)
	}

	if err := json.Unmarshal([]byte(headers), &doc.Headers); err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord,
			fmt.Errorf("%w: headers: %v", cache.ErrCorruptRecord, err))
	}
	rec, err := doc.Record(id)
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord, err)
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, id string, sourceURL url.URL, headers httpheader.List, body []byte) error {
	doc, err := cache.NewDocument(sourceURL, headers, body, s.now())
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}
	encodedHeaders, err := json.Marshal(doc.Headers)
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache_records (id, url, headers, timestamp, content) VALUES (?, ?, ?, ?, ?)",
		id, doc.URL, string(encodedHeaders), doc.Timestamp, doc.Content,
	)
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}
	return nil
}
