package backend_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/backend"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/cachetest"
	"github.com/rohmanhakim/cached-fetcher/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_None(t *testing.T) {
	cfg, err := config.WithDefault().Build()
	require.NoError(t, err)

	s, err := backend.Open(cfg)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpen_EveryBackendRoundTrips(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		builder *config.Config
	}{
		{name: "file raw", builder: config.WithDefault().WithCacheBackend(config.CacheBackendFile).WithCacheDir(filepath.Join(dir, "raw"))},
		{name: "file hashed", builder: config.WithDefault().WithCacheBackend(config.CacheBackendFile).WithCacheDir(filepath.Join(dir, "hashed")).WithCacheLayout("hashed")},
		{name: "sqlite", builder: config.WithDefault().WithCacheBackend(config.CacheBackendSQLite).WithSQLitePath(filepath.Join(dir, "cache.db"))},
		{name: "redis", builder: config.WithDefault().WithCacheBackend(config.CacheBackendRedis).WithRedis(mr.Addr(), "", 0).WithCachePrefix("t:")},
		{name: "leveldb", builder: config.WithDefault().WithCacheBackend(config.CacheBackendLevelDB).WithLevelDBPath(filepath.Join(dir, "level"))},
		{name: "memory", builder: config.WithDefault().WithCacheBackend(config.CacheBackendMemory).WithMemoryCapacity(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := tt.builder.Build()
			require.NoError(t, err)

			s, err := backend.Open(cfg)
			require.NoError(t, err)
			require.NotNil(t, s)
			defer s.Close()

			ctx := context.Background()
			require.NoError(t, s.Put(ctx, "page-1", cachetest.MustURL(t, "http://example.org/"), nil, []byte("body")))
			rec, ok, err := s.Get(ctx, "page-1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("body"), rec.Body)
		})
	}
}

func TestOpen_UnreachableRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg, err := config.WithDefault().WithCacheBackend(config.CacheBackendRedis).WithRedis(addr, "", 0).Build()
	require.NoError(t, err)

	s, err := backend.Open(cfg)
	assert.Error(t, err)
	assert.Nil(t, s)
}
