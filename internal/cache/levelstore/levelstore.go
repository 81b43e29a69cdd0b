// Package levelstore keeps cache records in an embedded LevelDB database.
// Each id maps to one key holding a msgpack encoded cache.Document.
package levelstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/syndtr/goleveldb/leveldb"
	leveldbStorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/vmihailenco/msgpack"
)

const backendName = "leveldb"

type Store struct {
	db     *leveldb.DB
	prefix string
	now    func() time.Time
}

// OpenFile opens (or creates) a database directory at path.
func OpenFile(path string, prefix string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("levelstore: open %s: %w", path, err)
	}
	return newStore(db, prefix), nil
}

// OpenMemory returns a store backed by an in-memory database.
func OpenMemory(prefix string) (*Store, error) {
	db, err := leveldb.Open(leveldbStorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("levelstore: open memory: %w", err)
	}
	return newStore(db, prefix), nil
}

func newStore(db *leveldb.DB, prefix string) *Store {
	return &Store{
		db:     db,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) makeKey(id string) []byte {
	return []byte(s.prefix + id)
}

func (s *Store) Get(_ context.Context, id string) (cache.Record, bool, error) {
	raw, err := s.db.Get(s.makeKey(id), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return cache.Record{}, false, nil
	}
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseReadFailure, err)
	}

	var doc cache.Document
	if err := msgpack.Unmarshal(raw, &doc); err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord,
			fmt.Errorf("%w: %v", cache.ErrCorruptRecord, err))
	}
	rec, err := doc.Record(id)
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord, err)
	}
	return rec, true, nil
}

func (s *Store) Put(_ context.Context, id string, sourceURL url.URL, headers httpheader.List, body []byte) error {
	doc, err := cache.NewDocument(sourceURL, headers, body, s.now())
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}
	raw, err := msgpack.Marshal(&doc)
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}
	if err := s.db.Put(s.makeKey(id), raw, nil); err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}
	return nil
}
