package cache

import (
	"context"
	"io"
	"net/url"

	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
)

/*
Responsibilities
- Persist response records keyed by the exact logical id
- Answer lookups with the full record or "absent"
- Stamp every write with the persistence time

Contract
- A missing id is not an error: Get returns ok=false and a nil error.
- Any storage fault (I/O, connection, corrupt record) is a *CacheIOError,
  never reported as a miss.
- Put replaces an existing record atomically; readers see the old or the
  new record, never a mix of both.
- Header order survives the round trip.

Backends live in sub-packages (filestore, sqlstore, redisstore, levelstore,
memstore). The line-oriented wire format in codec.go is the only thing they
must agree on.
*/
type Store interface {
	Get(ctx context.Context, id string) (Record, bool, error)
	Put(ctx context.Context, id string, sourceURL url.URL, headers httpheader.List, body []byte) error
}

// StoreCloser is a Store holding resources (files, connections) that must be
// released when the owner is done with it.
type StoreCloser interface {
	Store
	io.Closer
}

// NopCloser wraps a Store that holds no resources.
func NopCloser(s Store) StoreCloser {
	return nopCloser{s}
}

type nopCloser struct {
	Store
}

func (nopCloser) Close() error {
	return nil
}
