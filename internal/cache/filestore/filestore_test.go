package filestore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/cachetest"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/filestore"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	for _, layout := range []filestore.Layout{filestore.LayoutRaw, filestore.LayoutHashed} {
		t.Run(string(layout), func(t *testing.T) {
			cachetest.Run(t, func(t *testing.T) cache.Store {
				s, err := filestore.New(t.TempDir(), layout)
				require.NoError(t, err)
				return s
			})
		})
	}
}

func TestPut_WritesReferenceFormat(t *testing.T) {
	root := t.TempDir()
	s, err := filestore.New(root, filestore.LayoutRaw)
	require.NoError(t, err)
	s.SetClock(func() time.Time {
		return time.Date(2011, 5, 17, 9, 30, 1, 0, time.UTC)
	})

	headers := httpheader.List{
		{Name: "Content-Type", Value: "text/html; charset=utf-8"},
		{Name: "ETag", Value: "abc"},
	}
	err = s.Put(context.Background(), "page-1", cachetest.MustURL(t, "http://example.org/p"), headers, []byte("<html/>"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "page-1"))
	require.NoError(t, err)
	assert.Equal(t,
		"http://example.org/p\n2011-05-17T09:30:01Z\nContent-Type: text/html; charset=utf-8\nETag: abc\n\n<html/>",
		string(data))
}

func TestRawLayout_NestedIDs(t *testing.T) {
	root := t.TempDir()
	s, err := filestore.New(root, filestore.LayoutRaw)
	require.NoError(t, err)

	err = s.Put(context.Background(), "docs/2024/page", cachetest.MustURL(t, "http://example.org/"), nil, []byte("x"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "docs", "2024", "page"))
}

func TestRawLayout_RejectsEscapingIDs(t *testing.T) {
	s, err := filestore.New(t.TempDir(), filestore.LayoutRaw)
	require.NoError(t, err)

	for _, id := range []string{"../outside", "a/../../outside", "/etc/passwd", ".", "..", "a/./b", "page/", "x//y", "q/../r", "./page"} {
		t.Run(id, func(t *testing.T) {
			err := s.Put(context.Background(), id, cachetest.MustURL(t, "http://example.org/"), nil, nil)
			var cacheErr *cache.CacheIOError
			require.True(t, errors.As(err, &cacheErr))
			assert.Equal(t, cache.ErrCauseInvalidKey, cacheErr.Cause)

			_, ok, err := s.Get(context.Background(), id)
			assert.False(t, ok)
			require.True(t, errors.As(err, &cacheErr))
			assert.Equal(t, cache.ErrCauseInvalidKey, cacheErr.Cause)
		})
	}
}

func TestRawLayout_NonCanonicalIDsDoNotAlias(t *testing.T) {
	s, err := filestore.New(t.TempDir(), filestore.LayoutRaw)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "a/b", cachetest.MustURL(t, "http://example.org/"), nil, []byte("a/b")))

	for _, id := range []string{"a/./b", "a//b", "a/b/", "c/../a/b"} {
		t.Run(id, func(t *testing.T) {
			_, ok, err := s.Get(context.Background(), id)
			assert.False(t, ok)
			assert.Error(t, err)
		})
	}

	rec, ok, err := s.Get(context.Background(), "a/b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a/b"), rec.Body)
}

func TestHashedLayout_AcceptsAnyID(t *testing.T) {
	root := t.TempDir()
	s, err := filestore.New(root, filestore.LayoutHashed)
	require.NoError(t, err)

	id := "../not/a/path?"
	require.NoError(t, s.Put(context.Background(), id, cachetest.MustURL(t, "http://example.org/"), nil, []byte("x")))

	path, err := s.Path(id)
	require.NoError(t, err)
	assert.FileExists(t, path)

	rel, err := filepath.Rel(root, path)
	require.NoError(t, err)
	assert.Equal(t, 64+6, len(filepath.ToSlash(rel)), "two shard levels plus a 64 char digest")
}

func TestGet_CorruptFile(t *testing.T) {
	root := t.TempDir()
	s, err := filestore.New(root, filestore.LayoutRaw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken"), []byte("no newline at all"), 0644))

	_, ok, err := s.Get(context.Background(), "broken")
	assert.False(t, ok)
	var cacheErr *cache.CacheIOError
	require.True(t, errors.As(err, &cacheErr))
	assert.Equal(t, cache.ErrCauseCorruptRecord, cacheErr.Cause)
	assert.ErrorIs(t, err, cache.ErrCorruptRecord)
}

func TestGet_UnreadablePathIsAnError(t *testing.T) {
	root := t.TempDir()
	s, err := filestore.New(root, filestore.LayoutRaw)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0755))

	_, ok, err := s.Get(context.Background(), "dir")
	assert.False(t, ok)
	var cacheErr *cache.CacheIOError
	require.True(t, errors.As(err, &cacheErr))
	assert.Equal(t, cache.ErrCauseReadFailure, cacheErr.Cause)
}

func TestParseLayout(t *testing.T) {
	l, err := filestore.ParseLayout("hashed")
	require.NoError(t, err)
	assert.Equal(t, filestore.LayoutHashed, l)

	l, err = filestore.ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, filestore.LayoutRaw, l)

	_, err = filestore.ParseLayout("flat")
	assert.Error(t, err)
}
