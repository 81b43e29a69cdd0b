package config

import "time"

// CacheBackend selects the cache.Store implementation.
type CacheBackend string

const (
	CacheBackendNone    CacheBackend = "none"
	CacheBackendFile    CacheBackend = "file"
	CacheBackendSQLite  CacheBackend = "sqlite"
	CacheBackendRedis   CacheBackend = "redis"
	CacheBackendLevelDB CacheBackend = "leveldb"
	CacheBackendMemory  CacheBackend = "memory"
)

func (b CacheBackend) valid() bool {
	switch b {
	case CacheBackendNone, CacheBackendFile, CacheBackendSQLite,
		CacheBackendRedis, CacheBackendLevelDB, CacheBackendMemory:
		return true
	}
	return false
}

// AuditSink names one destination for per-attempt audit events.
type AuditSink string

const (
	AuditSinkLog     AuditSink = "log"
	AuditSinkMetrics AuditSink = "metrics"
)

// configDTO is the on-disk shape of a config file. Durations are nanosecond
// integers in JSON; YAML also accepts strings such as "2s".
type configDTO struct {
	ConnectTimeout     time.Duration  `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty"`
	SocketTimeout      time.Duration  `json:"socketTimeout,omitempty" yaml:"socketTimeout,omitempty"`
	RequestTimeout     time.Duration  `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"`
	Proxy              string         `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	UserAgent          string         `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	MaxRedirects       *int           `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	RequestStep        *time.Duration `json:"requestStep,omitempty" yaml:"requestStep,omitempty"`
	Jitter             time.Duration  `json:"jitter,omitempty" yaml:"jitter,omitempty"`
	RandomSeed         int64          `json:"randomSeed,omitempty" yaml:"randomSeed,omitempty"`
	MaxAttempts        int            `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
	RetryDelay         *time.Duration `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"`
	BackoffUnit        time.Duration  `json:"backoffUnit,omitempty" yaml:"backoffUnit,omitempty"`
	BackoffMaxDuration time.Duration  `json:"backoffMaxDuration,omitempty" yaml:"backoffMaxDuration,omitempty"`
	Cache              cacheDTO       `json:"cache,omitempty" yaml:"cache,omitempty"`
	LogLevel           string         `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	AuditSinks         []AuditSink    `json:"auditSinks,omitempty" yaml:"auditSinks,omitempty"`
}

type cacheDTO struct {
	Backend        CacheBackend `json:"backend,omitempty" yaml:"backend,omitempty"`
	Dir            string       `json:"dir,omitempty" yaml:"dir,omitempty"`
	Layout         string       `json:"layout,omitempty" yaml:"layout,omitempty"`
	SQLitePath     string       `json:"sqlitePath,omitempty" yaml:"sqlitePath,omitempty"`
	RedisAddr      string       `json:"redisAddr,omitempty" yaml:"redisAddr,omitempty"`
	RedisPassword  string       `json:"redisPassword,omitempty" yaml:"redisPassword,omitempty"`
	RedisDB        int          `json:"redisDb,omitempty" yaml:"redisDb,omitempty"`
	LevelDBPath    string       `json:"leveldbPath,omitempty" yaml:"leveldbPath,omitempty"`
	Prefix         string       `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	MemoryCapacity int          `json:"memoryCapacity,omitempty" yaml:"memoryCapacity,omitempty"`
}
