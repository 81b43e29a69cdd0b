// Package backend builds the configured cache.Store.
package backend

import (
	"fmt"

	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/filestore"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/levelstore"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/memstore"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/redisstore"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/sqlstore"
	"github.com/rohmanhakim/cached-fetcher/internal/config"
)

// Open returns the store selected by cfg, or nil when caching is disabled.
// The caller owns the returned store and must Close it.
func Open(cfg config.Config) (cache.StoreCloser, error) {
	switch cfg.CacheBackend() {
	case config.CacheBackendNone, "":
		return nil, nil
	case config.CacheBackendFile:
		layout, err := filestore.ParseLayout(cfg.CacheLayout())
		if err != nil {
			return nil, err
		}
		s, err := filestore.New(cfg.CacheDir(), layout)
		if err != nil {
			return nil, err
		}
		return cache.NopCloser(s), nil
	case config.CacheBackendSQLite:
		s, err := sqlstore.Open(cfg.SQLitePath())
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CacheBackendRedis:
		s, err := redisstore.Dial(redisstore.Options{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword(),
			DB:       cfg.RedisDB(),
			Prefix:   cfg.CachePrefix(),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CacheBackendLevelDB:
		s, err := levelstore.OpenFile(cfg.LevelDBPath(), cfg.CachePrefix())
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.CacheBackendMemory:
		s, err := memstore.New(cfg.MemoryCapacity())
		if err != nil {
			return nil, err
		}
		return cache.NopCloser(s), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", config.ErrInvalidConfig, cfg.CacheBackend())
	}
}
