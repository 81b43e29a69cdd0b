// Package memstore is a bounded in-process cache.Store. The least recently
// used record is evicted once capacity is reached.
package memstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
)

const backendName = "memory"

const DefaultCapacity = 1024

// Store keeps records in their encoded wire form so callers can never mutate
// a stored record through a returned slice.
type Store struct {
	lruCache *lru.Cache
	now      func() time.Time
}

func New(capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	lruCache, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("memstore: %w", err)
	}
	return &Store{
		lruCache: lruCache,
		now:      time.Now,
	}, nil
}

func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Len() int {
	return s.lruCache.Len()
}

func (s *Store) Get(_ context.Context, id string) (cache.Record, bool, error) {
	value, ok := s.lruCache.Get(id)
	if !ok {
		return cache.Record{}, false, nil
	}
	data, ok := value.([]byte)
	if !ok {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord,
			fmt.Errorf("%w: unexpected value %T", cache.ErrCorruptRecord, value))
	}
	rec, err := cache.Decode(id, data)
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord, err)
	}
	return rec, true, nil
}

func (s *Store) Put(_ context.Context, id string, sourceURL url.URL, headers httpheader.List, body []byte) error {
	data, err := cache.Encode(sourceURL, headers, body, s.now())
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}
	s.lruCache.Add(id, data)
	return nil
}
