// Package redisstore keeps each cache record as a Redis hash with the fields
// url, headers, timestamp and content.
package redisstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-redis/redis"
	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/vmihailenco/msgpack"
)

const backendName = "redis"

const (
	fieldURL       = "url"
	fieldHeaders   = "headers"
	fieldTimestamp = "timestamp"
	fieldContent   = "content"
)

type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every id on both reads and writes.
	Prefix string
}

type Store struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

// Dial connects to the server described by opts and checks it answers.
func Dial(opts Options) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", opts.Addr, err)
	}
	return New(client, opts.Prefix), nil
}

func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

func (s *Store) Get(ctx context.Context, id string) (cache.Record, bool, error) {
	fields, err := s.client.WithContext(ctx).HGetAll(s.key(id)).Result()
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseBackendUnavailable, err)
	}
	if len(fields) == 0 {
		return cache.Record{}, false, nil
	}

	doc := cache.Document{
		URL:       fields[fieldURL],
		Timestamp: fields[fieldTimestamp],
		Content:   []byte(fields[fieldContent]),
	}
	if err := msgpack.Unmarshal([]byte(fields[fieldHeaders]), &doc.Headers); err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord,
			fmt.Errorf("%w: headers: %v", cache.ErrCorruptRecord, err))
	}
	rec, err := doc.Record(id)
	if err != nil {
		return cache.Record{}, false, cache.NewCacheIOError(backendName, id, cache.ErrCauseCorruptRecord, err)
	}
	return rec, true, nil
}

// Put writes every field with one HMSET so readers never see a partial hash.
func (s *Store) Put(ctx context.Context, id string, sourceURL url.URL, headers httpheader.List, body []byte) error {
	doc, err := cache.NewDocument(sourceURL, headers, body, s.now())
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}
	encodedHeaders, err := msgpack.Marshal(doc.Headers)
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseWriteFailure, err)
	}

	err = s.client.WithContext(ctx).HMSet(s.key(id), map[string]interface{}{
		fieldURL:       doc.URL,
		fieldHeaders:   encodedHeaders,
		fieldTimestamp: doc.Timestamp,
		fieldContent:   doc.Content,
	}).Err()
	if err != nil {
		return cache.NewCacheIOError(backendName, id, cache.ErrCauseBackendUnavailable, err)
	}
	return nil
}
