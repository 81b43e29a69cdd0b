// Package cachetest holds the behaviour every cache.Store backend must share.
// Backend packages call Run from their own tests.
package cachetest

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises newStore against the store contract. newStore must return an
// empty store each time it is called.
func Run(t *testing.T, newStore func(t *testing.T) cache.Store) {
	t.Run("missing id is absent without error", func(t *testing.T) {
		s := newStore(t)
		rec, ok, err := s.Get(context.Background(), "does-not-exist")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, rec.ID)
	})

	t.Run("round trip keeps url headers and body", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		headers := httpheader.List{
			{Name: "Content-Type", Value: "text/html; charset=utf-8"},
			{Name: "ETag", Value: "abc"},
			{Name: "Set-Cookie", Value: "b=2"},
			{Name: "Set-Cookie", Value: "a=1"},
		}
		body := []byte("<html>\n\n<body>x</body>\x00</html>")
		source := MustURL(t, "http://example.org/page?id=1")

		before := time.Now().Add(-time.Second)
		require.NoError(t, s.Put(ctx, "page-1", source, headers, body))
		after := time.Now().Add(time.Second)

		rec, ok, err := s.Get(ctx, "page-1")
		require.NoError(t, err)
		require.True(t, ok)

		assert.Equal(t, "page-1", rec.ID)
		assert.Equal(t, source.String(), rec.SourceURL.String())
		assert.Equal(t, headers, rec.Headers)
		assert.Equal(t, body, rec.Body)
		assert.True(t, !rec.CapturedAt.Before(before.Truncate(time.Second)), "captured at %v", rec.CapturedAt)
		assert.True(t, !rec.CapturedAt.After(after), "captured at %v", rec.CapturedAt)
		assert.Equal(t, time.UTC, rec.CapturedAt.Location())
	})

	t.Run("zero headers and empty body", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "empty", MustURL(t, "http://example.org/"), nil, nil))

		rec, ok, err := s.Get(ctx, "empty")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Empty(t, rec.Headers)
		assert.Empty(t, rec.Body)
	})

	t.Run("put replaces existing record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "k", MustURL(t, "http://example.org/v1"), httpheader.List{{Name: "X-V", Value: "1"}}, []byte("one")))
		require.NoError(t, s.Put(ctx, "k", MustURL(t, "http://example.org/v2"), httpheader.List{{Name: "X-V", Value: "2"}}, []byte("two")))

		rec, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "http://example.org/v2", rec.SourceURL.String())
		v, _ := rec.Headers.Get("x-v")
		assert.Equal(t, "2", v)
		assert.Equal(t, []byte("two"), rec.Body)
	})

	t.Run("ids are independent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "a", MustURL(t, "http://example.org/a"), nil, []byte("A")))
		require.NoError(t, s.Put(ctx, "b", MustURL(t, "http://example.org/b"), nil, []byte("B")))

		a, ok, err := s.Get(ctx, "a")
		require.NoError(t, err)
		require.True(t, ok)
		b, ok, err := s.Get(ctx, "b")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("A"), a.Body)
		assert.Equal(t, []byte("B"), b.Body)
	})

	t.Run("concurrent writers leave a whole record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		bodies := [][]byte{[]byte("first-version"), []byte("second-version")}
		source := MustURL(t, "http://example.org/")

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = s.Put(ctx, "shared", source, nil, bodies[i%2])
			}(i)
		}
		wg.Wait()

		rec, ok, err := s.Get(ctx, "shared")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Contains(t, [][]byte{bodies[0], bodies[1]}, rec.Body)
	})
}

func MustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}
