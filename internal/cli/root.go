package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/audit"
	"github.com/rohmanhakim/cached-fetcher/internal/build"
	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/internal/cache/backend"
	"github.com/rohmanhakim/cached-fetcher/internal/config"
	"github.com/rohmanhakim/cached-fetcher/internal/fetcher"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	logLevel       string
	connectTimeout time.Duration
	socketTimeout  time.Duration
	requestTimeout time.Duration
	proxyURL       string
	userAgent      string
	maxRedirects   int
	requestStep    time.Duration
	jitter         time.Duration
	randomSeed     int64
	maxAttempts    int
	retryDelay     time.Duration
	cacheBackend   string
	cacheDir       string
	cacheLayout    string
	sqlitePath     string
	redisAddr      string
	redisPassword  string
	redisDB        int
	levelDBPath    string
	cachePrefix    string
	memoryCapacity int
	auditSinks     []string

	fetchID        string
	fetchURL       string
	fetchMethod    string
	formFields     []string
	referrer       string
	cookies        []string
	maxAge         time.Duration
	outputPath     string
	includeHeaders bool
)

// unset marks an int or duration flag whose zero value is meaningful.
const unset = -1

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cached-fetcher",
	Short: "A polite HTTP fetcher with a pluggable response cache.",
	Long: `cached-fetcher fetches web pages by a stable logical id. Fresh cached
copies are served without touching the network; otherwise the page is
fetched with throttling, retries and failure backoff, and the successful
response is cached. When the network fails a stale cached copy is served
instead of an error.`,
	SilenceUsage: true,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch a URL through the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var cachedCmd = &cobra.Command{
	Use:   "cached",
	Short: "Print the cached copy of an id without touching the network",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCached(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (built %s)\n", build.Name, build.FullVersion(), build.BuildTime)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// ExecuteWithArgs runs the command tree with the given arguments and
// writers instead of the process ones.
func ExecuteWithArgs(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	}()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config-file", "", "config file path, .json or .yaml (e.g., /home/myuser/fetcher.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.DurationVar(&connectTimeout, "connect-timeout", 0, "TCP connect timeout")
	flags.DurationVar(&socketTimeout, "socket-timeout", 0, "time to wait for response headers")
	flags.DurationVar(&requestTimeout, "request-timeout", 0, "overall limit for one exchange (0 for none)")
	flags.StringVar(&proxyURL, "proxy", "", "proxy URL: http://, https:// or socks5://")
	flags.StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	flags.IntVar(&maxRedirects, "max-redirects", unset, "redirects to follow per exchange (0 returns the redirect itself)")
	flags.DurationVar(&requestStep, "request-step", unset, "minimum spacing between two outbound requests")
	flags.DurationVar(&jitter, "jitter", 0, "random jitter added to the request step")
	flags.Int64Var(&randomSeed, "random-seed", 0, "seed for jitter (0 for current time)")
	flags.IntVar(&maxAttempts, "max-attempts", 0, "network attempts per fetch")
	flags.DurationVar(&retryDelay, "retry-delay", unset, "pause between two attempts of the same fetch")
	flags.StringVar(&cacheBackend, "cache-backend", "", "cache backend: none, file, sqlite, redis, leveldb, memory")
	flags.StringVar(&cacheDir, "cache-dir", "", "root directory of the file cache")
	flags.StringVar(&cacheLayout, "cache-layout", "", "file cache layout: raw or hashed")
	flags.StringVar(&sqlitePath, "sqlite-path", "", "sqlite cache database file")
	flags.StringVar(&redisAddr, "redis-addr", "", "redis cache address host:port")
	flags.StringVar(&redisPassword, "redis-password", "", "redis cache password")
	flags.IntVar(&redisDB, "redis-db", 0, "redis cache database number")
	flags.StringVar(&levelDBPath, "leveldb-path", "", "leveldb cache directory")
	flags.StringVar(&cachePrefix, "cache-prefix", "", "key prefix for redis and leveldb caches")
	flags.IntVar(&memoryCapacity, "memory-capacity", 0, "records kept by the memory cache")
	flags.StringArrayVar(&auditSinks, "audit-sink", []string{}, "audit sink: log or metrics (can be repeated)")

	fetchCmd.Flags().StringVar(&fetchID, "id", "", "logical id of the page, used as the cache key")
	fetchCmd.Flags().StringVar(&fetchURL, "url", "", "URL to fetch")
	fetchCmd.Flags().StringVar(&fetchMethod, "method", http.MethodGet, "GET or POST")
	fetchCmd.Flags().StringArrayVar(&formFields, "form", []string{}, "POST form field name=value (can be repeated)")
	fetchCmd.Flags().StringVar(&referrer, "referrer", "", "referring page URL")
	fetchCmd.Flags().StringArrayVar(&cookies, "cookie", []string{}, "cookie name=value sent with the request (can be repeated)")
	fetchCmd.Flags().DurationVar(&maxAge, "max-age", 0, "serve cached copies younger than this without fetching (0 accepts any age)")
	fetchCmd.Flags().StringVar(&outputPath, "output", "", "write the body to this file instead of stdout")
	fetchCmd.Flags().BoolVar(&includeHeaders, "include-headers", false, "print response headers before the body")

	cachedCmd.Flags().StringVar(&fetchID, "id", "", "logical id of the page")
	cachedCmd.Flags().StringVar(&outputPath, "output", "", "write the body to this file instead of stdout")
	cachedCmd.Flags().BoolVar(&includeHeaders, "include-headers", false, "print cached headers before the body")

	rootCmd.AddCommand(fetchCmd, cachedCmd, versionCmd)
}

// InitConfigWithError reads in config file and flags, returning any errors.
// A config file wins over flags.
// This makes it easier to test error cases.
func InitConfigWithError() (config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	configBuilder := config.WithDefault()

	if connectTimeout > 0 {
		configBuilder = configBuilder.WithConnectTimeout(connectTimeout)
	}
	if socketTimeout > 0 {
		configBuilder = configBuilder.WithSocketTimeout(socketTimeout)
	}
	if requestTimeout > 0 {
		configBuilder = configBuilder.WithRequestTimeout(requestTimeout)
	}
	if proxyURL != "" {
		configBuilder = configBuilder.WithProxy(proxyURL)
	}
	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}
	if maxRedirects != unset {
		configBuilder = configBuilder.WithMaxRedirects(maxRedirects)
	}
	if requestStep != unset {
		configBuilder = configBuilder.WithRequestStep(requestStep)
	}
	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}
	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}
	if maxAttempts != 0 {
		configBuilder = configBuilder.WithMaxAttempts(maxAttempts)
	}
	if retryDelay != unset {
		configBuilder = configBuilder.WithRetryDelay(retryDelay)
	}
	if cacheBackend != "" {
		configBuilder = configBuilder.WithCacheBackend(config.CacheBackend(cacheBackend))
	}
	if cacheDir != "" {
		configBuilder = configBuilder.WithCacheDir(cacheDir)
	}
	if cacheLayout != "" {
		configBuilder = configBuilder.WithCacheLayout(cacheLayout)
	}
	if sqlitePath != "" {
		configBuilder = configBuilder.WithSQLitePath(sqlitePath)
	}
	if redisAddr != "" {
		configBuilder = configBuilder.WithRedis(redisAddr, redisPassword, redisDB)
	}
	if levelDBPath != "" {
		configBuilder = configBuilder.WithLevelDBPath(levelDBPath)
	}
	if cachePrefix != "" {
		configBuilder = configBuilder.WithCachePrefix(cachePrefix)
	}
	if memoryCapacity > 0 {
		configBuilder = configBuilder.WithMemoryCapacity(memoryCapacity)
	}
	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}
	if len(auditSinks) > 0 {
		sinks := make([]config.AuditSink, 0, len(auditSinks))
		for _, s := range auditSinks {
			sinks = append(sinks, config.AuditSink(s))
		}
		configBuilder = configBuilder.WithAuditSinks(sinks)
	}

	return configBuilder.Build()
}

// session is everything one command invocation needs, built from config.
type session struct {
	fetcher *fetcher.CachingFetcher
	store   cache.StoreCloser
	metrics *audit.MetricsAuditor
	logger  zerolog.Logger
}

func openSession(cfg config.Config, stderr io.Writer) (*session, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel())
	if err != nil {
		return nil, err
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

	store, err := backend.Open(cfg)
	if err != nil {
		return nil, err
	}

	var (
		auditors []audit.Auditor
		metrics  *audit.MetricsAuditor
	)
	for _, sink := range cfg.AuditSinks() {
		switch sink {
		case config.AuditSinkLog:
			auditors = append(auditors, audit.NewLogAuditor(logger))
		case config.AuditSinkMetrics:
			metrics = audit.NewMetricsAuditor()
			auditors = append(auditors, metrics)
		}
	}

	client, err := fetcher.NewHTTPClient(fetcher.ClientParamFromConfig(cfg))
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	f := fetcher.NewCachingFetcher(client, store, audit.Multi(auditors...), fetcher.SettingsFromConfig(cfg))
	f.SetLogger(logger)

	logger.Debug().
		Str("version", build.FullVersion()).
		Str("cache_backend", string(cfg.CacheBackend())).
		Dur("request_step", cfg.RequestStep()).
		Int("max_attempts", cfg.MaxAttempts()).
		Msg("fetcher ready")

	return &session{
		fetcher: f,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// close releases the cache and dumps collected metrics to w.
func (s *session) close(w io.Writer) error {
	var errs []error
	if s.metrics != nil {
		errs = append(errs, s.metrics.WriteText(w))
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

func runFetch(ctx context.Context, stdout, stderr io.Writer) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}
	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}
	s, err := openSession(cfg, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(stderr); err != nil {
			s.logger.Error().Err(err).Msg("shutdown")
		}
	}()

	resp, err := s.fetcher.Execute(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Str("id", req.ID()).Msg("fetch failed")
		return err
	}
	defer resp.Close()

	finalURL := resp.URL()
	s.logger.Info().
		Str("id", req.ID()).
		Str("url", finalURL.String()).
		Bool("from_cache", resp.FromCache()).
		Bool("stale", resp.Stale()).
		Msg("fetched")
	return writeResponse(stdout, resp)
}

func runCached(ctx context.Context, stdout, stderr io.Writer) error {
	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}
	s, err := openSession(cfg, stderr)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.close(stderr); err != nil {
			s.logger.Error().Err(err).Msg("shutdown")
		}
	}()

	resp, err := s.fetcher.FetchFromCache(ctx, fetchID)
	if err != nil {
		return err
	}
	if resp == nil {
		return fmt.Errorf("no cached copy for id %q", fetchID)
	}
	defer resp.Close()
	return writeResponse(stdout, resp)
}

func buildRequest() (fetcher.Request, error) {
	if fetchURL == "" {
		return fetcher.Request{}, fmt.Errorf("--url is required")
	}
	target, err := url.Parse(fetchURL)
	if err != nil {
		return fetcher.Request{}, fmt.Errorf("error parsing URL %s: %w", fetchURL, err)
	}

	var opts []fetcher.RequestOption
	if referrer != "" {
		ref, err := url.Parse(referrer)
		if err != nil {
			return fetcher.Request{}, fmt.Errorf("error parsing referrer %s: %w", referrer, err)
		}
		opts = append(opts, fetcher.WithReferrer(*ref))
	}
	if len(cookies) > 0 {
		parsed, err := parseCookies(cookies)
		if err != nil {
			return fetcher.Request{}, err
		}
		opts = append(opts, fetcher.WithCookies(parsed...))
	}
	if maxAge > 0 {
		opts = append(opts, fetcher.WithMaxAge(maxAge))
	}

	switch strings.ToUpper(fetchMethod) {
	case "", http.MethodGet:
		if len(formFields) > 0 {
			return fetcher.Request{}, fmt.Errorf("--form requires --method POST")
		}
		return fetcher.NewGetRequest(fetchID, *target, opts...), nil
	case http.MethodPost:
		form, err := parseForm(formFields)
		if err != nil {
			return fetcher.Request{}, err
		}
		return fetcher.NewPostRequest(fetchID, *target, form, opts...), nil
	default:
		return fetcher.Request{}, fmt.Errorf("unsupported method %q", fetchMethod)
	}
}

func parseForm(fields []string) (url.Values, error) {
	form := url.Values{}
	for _, field := range fields {
		name, value, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid form field %q, want name=value", field)
		}
		form.Add(name, value)
	}
	return form, nil
}

func parseCookies(pairs []string) ([]*http.Cookie, error) {
	out := make([]*http.Cookie, 0, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cookie %q, want name=value", pair)
		}
		out = append(out, &http.Cookie{Name: name, Value: value})
	}
	return out, nil
}

func writeResponse(stdout io.Writer, resp *fetcher.Response) (err error) {
	w := stdout
	if outputPath != "" {
		f, createErr := os.Create(outputPath)
		if createErr != nil {
			return createErr
		}
		defer func() {
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}()
		w = f
	}

	if includeHeaders {
		for _, line := range resp.Headers().Lines() {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	_, err = io.Copy(w, resp.Body())
	return err
}

func ResetFlags() {
	cfgFile = ""
	logLevel = ""
	connectTimeout = 0
	socketTimeout = 0
	requestTimeout = 0
	proxyURL = ""
	userAgent = ""
	maxRedirects = unset
	requestStep = unset
	jitter = 0
	randomSeed = 0
	maxAttempts = 0
	retryDelay = unset
	cacheBackend = ""
	cacheDir = ""
	cacheLayout = ""
	sqlitePath = ""
	redisAddr = ""
	redisPassword = ""
	redisDB = 0
	levelDBPath = ""
	cachePrefix = ""
	memoryCapacity = 0
	auditSinks = []string{}

	fetchID = ""
	fetchURL = ""
	fetchMethod = http.MethodGet
	formFields = []string{}
	referrer = ""
	cookies = []string{}
	maxAge = 0
	outputPath = ""
	includeHeaders = false
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetLogLevelForTest(level string) {
	logLevel = level
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetProxyForTest(proxy string) {
	proxyURL = proxy
}

func SetMaxRedirectsForTest(n int) {
	maxRedirects = n
}

func SetRequestStepForTest(step time.Duration) {
	requestStep = step
}

func SetJitterForTest(j time.Duration) {
	jitter = j
}

func SetRandomSeedForTest(seed int64) {
	randomSeed = seed
}

func SetMaxAttemptsForTest(attempts int) {
	maxAttempts = attempts
}

func SetRetryDelayForTest(delay time.Duration) {
	retryDelay = delay
}

func SetCacheBackendForTest(b string) {
	cacheBackend = b
}

func SetCacheDirForTest(dir string) {
	cacheDir = dir
}

func SetAuditSinksForTest(sinks []string) {
	auditSinks = sinks
}
