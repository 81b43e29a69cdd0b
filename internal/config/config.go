package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/build"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxAttempts  = 3
	DefaultMaxRedirects = 5
)

type Config struct {
	//===============
	// Transport
	//===============
	// Maximum time to establish a TCP connection
	connectTimeout time.Duration
	// Maximum time to wait for response headers once the request is written
	socketTimeout time.Duration
	// Upper bound for a whole exchange including the body. Zero means none.
	requestTimeout time.Duration
	// Outbound proxy, http(s):// or socks5://. Empty means direct.
	proxy string
	// User agent sent on every request
	userAgent string
	// Redirects followed before giving up
	maxRedirects int

	//===============
	// Politeness
	//===============
	// Minimum spacing between two consecutive outbound requests
	requestStep time.Duration
	// Randomized variation added on top of the request step
	jitter time.Duration
	// Controls the jitter random number generator
	randomSeed int64

	//===============
	// Retry
	//===============
	// Attempts per fetch call
	maxAttempts int
	// Fixed sleep between two attempts of the same call
	retryDelay time.Duration
	// First non-zero backoff delay
	backoffUnit time.Duration
	// Backoff delays never exceed this
	backoffMaxDuration time.Duration

	//===============
	// Cache
	//===============
	cacheBackend   CacheBackend
	cacheDir       string
	cacheLayout    string
	sqlitePath     string
	redisAddr      string
	redisPassword  string
	redisDB        int
	leveldbPath    string
	cachePrefix    string
	memoryCapacity int

	//===============
	// Observability
	//===============
	logLevel   string
	auditSinks []AuditSink
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := WithDefault()

	// only override if non-zero value is provided
	if dto.ConnectTimeout != 0 {
		cfg.connectTimeout = dto.ConnectTimeout
	}
	if dto.SocketTimeout != 0 {
		cfg.socketTimeout = dto.SocketTimeout
	}
	if dto.RequestTimeout != 0 {
		cfg.requestTimeout = dto.RequestTimeout
	}
	if dto.Proxy != "" {
		cfg.proxy = dto.Proxy
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	// zero is meaningful for these, so they are pointers
	if dto.MaxRedirects != nil {
		cfg.maxRedirects = *dto.MaxRedirects
	}
	if dto.RequestStep != nil {
		cfg.requestStep = *dto.RequestStep
	}
	if dto.RetryDelay != nil {
		cfg.retryDelay = *dto.RetryDelay
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempts != 0 {
		cfg.maxAttempts = dto.MaxAttempts
	}
	if dto.BackoffUnit != 0 {
		cfg.backoffUnit = dto.BackoffUnit
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}

	if dto.Cache.Backend != "" {
		cfg.cacheBackend = dto.Cache.Backend
	}
	if dto.Cache.Dir != "" {
		cfg.cacheDir = dto.Cache.Dir
	}
	if dto.Cache.Layout != "" {
		cfg.cacheLayout = dto.Cache.Layout
	}
	if dto.Cache.SQLitePath != "" {
		cfg.sqlitePath = dto.Cache.SQLitePath
	}
	if dto.Cache.RedisAddr != "" {
		cfg.redisAddr = dto.Cache.RedisAddr
	}
	cfg.redisPassword = dto.Cache.RedisPassword
	cfg.redisDB = dto.Cache.RedisDB
	if dto.Cache.LevelDBPath != "" {
		cfg.leveldbPath = dto.Cache.LevelDBPath
	}
	cfg.cachePrefix = dto.Cache.Prefix
	if dto.Cache.MemoryCapacity != 0 {
		cfg.memoryCapacity = dto.Cache.MemoryCapacity
	}

	if dto.LogLevel != "" {
		cfg.logLevel = dto.LogLevel
	}
	if dto.AuditSinks != nil {
		cfg.auditSinks = dto.AuditSinks
	}

	return cfg.Build()
}

// WithConfigFile loads a config file. The format follows the extension:
// .json, or .yaml / .yml.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(configContent, &cfgDTO)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(configContent, &cfgDTO)
	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault creates a new Config holding the default value of every field.
// The default cache backend is "none".
func WithDefault() *Config {
	defaultConfig := Config{
		connectTimeout:     10 * time.Second,
		socketTimeout:      10 * time.Second,
		requestTimeout:     0,
		proxy:              "",
		userAgent:          build.UserAgent(),
		maxRedirects:       DefaultMaxRedirects,
		requestStep:        time.Second,
		jitter:             0,
		randomSeed:         time.Now().UnixNano(),
		maxAttempts:        DefaultMaxAttempts,
		retryDelay:         2 * time.Second,
		backoffUnit:        time.Second,
		backoffMaxDuration: time.Hour,
		cacheBackend:       CacheBackendNone,
		cacheDir:           "cache",
		cacheLayout:        "raw",
		sqlitePath:         "cache.db",
		redisAddr:          "localhost:6379",
		leveldbPath:        "cache.leveldb",
		memoryCapacity:     1024,
		logLevel:           "info",
		auditSinks:         []AuditSink{},
	}
	return &defaultConfig
}

func (c *Config) WithConnectTimeout(timeout time.Duration) *Config {
	c.connectTimeout = timeout
	return c
}

func (c *Config) WithSocketTimeout(timeout time.Duration) *Config {
	c.socketTimeout = timeout
	return c
}

func (c *Config) WithRequestTimeout(timeout time.Duration) *Config {
	c.requestTimeout = timeout
	return c
}

func (c *Config) WithProxy(proxy string) *Config {
	c.proxy = proxy
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithMaxRedirects(n int) *Config {
	c.maxRedirects = n
	return c
}

func (c *Config) WithRequestStep(step time.Duration) *Config {
	c.requestStep = step
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempts(attempts int) *Config {
	c.maxAttempts = attempts
	return c
}

func (c *Config) WithRetryDelay(delay time.Duration) *Config {
	c.retryDelay = delay
	return c
}

func (c *Config) WithBackoffUnit(unit time.Duration) *Config {
	c.backoffUnit = unit
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithCacheBackend(backend CacheBackend) *Config {
	c.cacheBackend = backend
	return c
}

func (c *Config) WithCacheDir(dir string) *Config {
	c.cacheDir = dir
	return c
}

func (c *Config) WithCacheLayout(layout string) *Config {
	c.cacheLayout = layout
	return c
}

func (c *Config) WithSQLitePath(path string) *Config {
	c.sqlitePath = path
	return c
}

func (c *Config) WithRedis(addr string, password string, db int) *Config {
	c.redisAddr = addr
	c.redisPassword = password
	c.redisDB = db
	return c
}

func (c *Config) WithLevelDBPath(path string) *Config {
	c.leveldbPath = path
	return c
}

func (c *Config) WithCachePrefix(prefix string) *Config {
	c.cachePrefix = prefix
	return c
}

func (c *Config) WithMemoryCapacity(capacity int) *Config {
	c.memoryCapacity = capacity
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) WithAuditSinks(sinks []AuditSink) *Config {
	c.auditSinks = sinks
	return c
}

func (c *Config) Build() (Config, error) {
	if c.connectTimeout < 0 || c.socketTimeout < 0 || c.requestTimeout < 0 {
		return Config{}, fmt.Errorf("%w: timeouts cannot be negative", ErrInvalidConfig)
	}
	if c.maxRedirects < 0 {
		return Config{}, fmt.Errorf("%w: maxRedirects cannot be negative", ErrInvalidConfig)
	}
	if c.maxAttempts < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempts must be at least 1, got %d", ErrInvalidConfig, c.maxAttempts)
	}
	if c.requestStep < 0 || c.jitter < 0 || c.retryDelay < 0 {
		return Config{}, fmt.Errorf("%w: requestStep, jitter and retryDelay cannot be negative", ErrInvalidConfig)
	}
	if c.backoffUnit <= 0 {
		return Config{}, fmt.Errorf("%w: backoffUnit must be positive", ErrInvalidConfig)
	}
	if c.backoffMaxDuration < c.backoffUnit {
		return Config{}, fmt.Errorf("%w: backoffMaxDuration %v is below backoffUnit %v", ErrInvalidConfig, c.backoffMaxDuration, c.backoffUnit)
	}

	if c.proxy != "" {
		u, err := url.Parse(c.proxy)
		if err != nil {
			return Config{}, fmt.Errorf("%w: proxy: %s", ErrInvalidConfig, err.Error())
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return Config{}, fmt.Errorf("%w: unsupported proxy scheme %q", ErrInvalidConfig, u.Scheme)
		}
		if u.Host == "" {
			return Config{}, fmt.Errorf("%w: proxy %q has no host", ErrInvalidConfig, c.proxy)
		}
	}

	if !c.cacheBackend.valid() {
		return Config{}, fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.cacheBackend)
	}
	switch c.cacheBackend {
	case CacheBackendFile:
		if c.cacheDir == "" {
			return Config{}, fmt.Errorf("%w: file cache needs a directory", ErrInvalidConfig)
		}
		if c.cacheLayout != "raw" && c.cacheLayout != "hashed" {
			return Config{}, fmt.Errorf("%w: unknown file cache layout %q", ErrInvalidConfig, c.cacheLayout)
		}
	case CacheBackendSQLite:
		if c.sqlitePath == "" {
			return Config{}, fmt.Errorf("%w: sqlite cache needs a path", ErrInvalidConfig)
		}
	case CacheBackendRedis:
		if c.redisAddr == "" {
			return Config{}, fmt.Errorf("%w: redis cache needs an address", ErrInvalidConfig)
		}
	case CacheBackendLevelDB:
		if c.leveldbPath == "" {
			return Config{}, fmt.Errorf("%w: leveldb cache needs a path", ErrInvalidConfig)
		}
	}

	if _, err := zerolog.ParseLevel(c.logLevel); err != nil {
		return Config{}, fmt.Errorf("%w: log level: %s", ErrInvalidConfig, err.Error())
	}
	for _, sink := range c.auditSinks {
		if sink != AuditSinkLog && sink != AuditSinkMetrics {
			return Config{}, fmt.Errorf("%w: unknown audit sink %q", ErrInvalidConfig, sink)
		}
	}

	return *c, nil
}

func (c Config) ConnectTimeout() time.Duration {
	return c.connectTimeout
}

func (c Config) SocketTimeout() time.Duration {
	return c.socketTimeout
}

func (c Config) RequestTimeout() time.Duration {
	return c.requestTimeout
}

func (c Config) Proxy() string {
	return c.proxy
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) MaxRedirects() int {
	return c.maxRedirects
}

func (c Config) RequestStep() time.Duration {
	return c.requestStep
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) MaxAttempts() int {
	return c.maxAttempts
}

func (c Config) RetryDelay() time.Duration {
	return c.retryDelay
}

func (c Config) BackoffUnit() time.Duration {
	return c.backoffUnit
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) CacheBackend() CacheBackend {
	return c.cacheBackend
}

func (c Config) CacheDir() string {
	return c.cacheDir
}

func (c Config) CacheLayout() string {
	return c.cacheLayout
}

func (c Config) SQLitePath() string {
	return c.sqlitePath
}

func (c Config) RedisAddr() string {
	return c.redisAddr
}

func (c Config) RedisPassword() string {
	return c.redisPassword
}

func (c Config) RedisDB() int {
	return c.redisDB
}

func (c Config) LevelDBPath() string {
	return c.leveldbPath
}

func (c Config) CachePrefix() string {
	return c.cachePrefix
}

func (c Config) MemoryCapacity() int {
	return c.memoryCapacity
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) AuditSinks() []AuditSink {
	sinks := make([]AuditSink, len(c.auditSinks))
	copy(sinks, c.auditSinks)
	return sinks
}
