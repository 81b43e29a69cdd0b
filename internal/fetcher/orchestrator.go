package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/audit"
	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/internal/config"
	"github.com/rohmanhakim/cached-fetcher/pkg/failure"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/rohmanhakim/cached-fetcher/pkg/limiter"
	"github.com/rohmanhakim/cached-fetcher/pkg/retry"
	"github.com/rohmanhakim/cached-fetcher/pkg/timeutil"
	"github.com/rohmanhakim/cached-fetcher/pkg/urlutil"
	"github.com/rs/zerolog"
)

/*
Responsibilities

- Serve fresh cached copies without touching the network
- Perform throttled, retried HTTP exchanges
- Persist successful responses
- Fall back to a stale copy when the network fails

Fetch Semantics

- Only a 200 response counts as success and is cached
- Transport failures are retried with a fixed pause; statuses are not
- Every attempt is audited, successful or not
- The throttle is acquired before every attempt, so upstream failures
  widen the spacing of all later requests of this instance

The fetcher never parses content; it only returns bytes and headers.
*/

// Transport performs one HTTP exchange. *http.Client satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// Settings holds the politeness and retry knobs of a CachingFetcher.
type Settings struct {
	RequestStep time.Duration
	Jitter      time.Duration
	// Zero seeds the jitter from the clock.
	RandomSeed int64
	Retry      retry.RetryParam
	Backoff    timeutil.BackoffParam
}

func DefaultSettings() Settings {
	return Settings{
		RequestStep: time.Second,
		Retry:       retry.NewRetryParam(2*time.Second, config.DefaultMaxAttempts),
		Backoff:     timeutil.NewBackoffParam(time.Second, time.Hour),
	}
}

func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		RequestStep: cfg.RequestStep(),
		Jitter:      cfg.Jitter(),
		RandomSeed:  cfg.RandomSeed(),
		Retry:       retry.NewRetryParam(cfg.RetryDelay(), cfg.MaxAttempts()),
		Backoff:     timeutil.NewBackoffParam(cfg.BackoffUnit(), cfg.BackoffMaxDuration()),
	}
}

// CachingFetcher fetches through a cache. Throttle and backoff state belong to
// the instance; concurrent Execute calls share them and are admitted one at a
// time.
type CachingFetcher struct {
	transport  Transport
	store      cache.Store
	auditor    audit.Auditor
	throttle   *limiter.Throttle
	backoff    *limiter.FibonacciBackoff
	retryParam retry.RetryParam
	logger     zerolog.Logger
	now        func() time.Time
}

// NewCachingFetcher wires a fetcher. store may be nil to disable caching and
// auditor may be nil to disable auditing.
func NewCachingFetcher(
	transport Transport,
	store cache.Store,
	auditor audit.Auditor,
	settings Settings,
) *CachingFetcher {
	if auditor == nil {
		auditor = audit.NoopAuditor{}
	}
	backoff := limiter.NewFibonacciBackoff(settings.Backoff)
	throttle := limiter.NewThrottle(settings.RequestStep, backoff)
	throttle.SetJitter(settings.Jitter)
	if settings.RandomSeed != 0 {
		throttle.SetRandomSeed(settings.RandomSeed)
	}

	return &CachingFetcher{
		transport:  transport,
		store:      store,
		auditor:    auditor,
		throttle:   throttle,
		backoff:    backoff,
		retryParam: settings.Retry,
		logger:     zerolog.Nop(),
		now:        time.Now,
	}
}

func (f *CachingFetcher) SetLogger(logger zerolog.Logger) {
	f.logger = logger.With().Str("component", "fetcher").Logger()
}

// SetClock replaces the clock used for freshness checks and audit timestamps.
func (f *CachingFetcher) SetClock(now func() time.Time) {
	f.now = now
}

func (f *CachingFetcher) Backoff() *limiter.FibonacciBackoff {
	return f.backoff
}

func (f *CachingFetcher) Throttle() *limiter.Throttle {
	return f.throttle
}

// FetchFromCache returns the cached copy for id regardless of age, or nil
// when there is none or caching is disabled.
func (f *CachingFetcher) FetchFromCache(ctx context.Context, id string) (*Response, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	if f.store == nil {
		return nil, nil
	}
	rec, ok, err := f.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return responseFromRecord(rec, false), nil
}

// Execute returns a fresh cached copy when there is one, otherwise fetches
// req.Target(). On failure it falls back to a stale cached copy if one
// exists, else returns a *FetchError.
func (f *CachingFetcher) Execute(ctx context.Context, req Request) (*Response, error) {
	if err := validateID(req.id); err != nil {
		return nil, err
	}
	logger := f.logger.With().Str("id", req.id).Str("url", req.target.String()).Logger()

	var stale *cache.Record
	if f.store != nil {
		rec, ok, err := f.store.Get(ctx, req.id)
		if err != nil {
			return nil, err
		}
		switch {
		case !ok:
			logger.Trace().Msg("cache miss")
		case IsFresh(rec.CapturedAt, req.maxAge, f.now()):
			logger.Trace().Time("captured_at", rec.CapturedAt).Msg("cache hit")
			return responseFromRecord(rec, false), nil
		default:
			logger.Trace().Dur("age", rec.Age(f.now())).Msg("cache entry expired")
			stale = &rec
		}
	}

	retryParam := f.retryParam.WithOnRetry(func(attempt int, err failure.ClassifiedError) {
		logger.Warn().Int("attempt", attempt).Err(err).Msg("retrying")
	})
	attempts := 0
	result, fetchErr := retry.Retry(ctx, retryParam, func(attempt int) (fetched, failure.ClassifiedError) {
		attempts = attempt
		return f.attempt(ctx, req, attempt, logger)
	})

	if fetchErr != nil {
		cause := lastCause(fetchErr)
		if ctxErr := ctx.Err(); ctxErr != nil && isInterruption(fetchErr) {
			return nil, &FetchError{
				Message:  ctxErr.Error(),
				ID:       req.id,
				URL:      req.target.String(),
				Attempts: attempts,
				Err:      ctxErr,
			}
		}
		if stale != nil {
			logger.Error().Err(cause).Time("captured_at", stale.CapturedAt).Msg("fetch failed, serving stale copy")
			return responseFromRecord(*stale, true), nil
		}
		return nil, &FetchError{
			Message:   cause.Error(),
			Retryable: failure.IsRecoverable(cause),
			ID:        req.id,
			URL:       req.target.String(),
			Attempts:  attempts,
			Err:       cause,
		}
	}

	if f.store != nil {
		if err := f.store.Put(ctx, req.id, result.url, result.headers, result.body); err != nil {
			return nil, err
		}
	}
	return newResponse(result.url, result.headers, result.body, false, false), nil
}

func (f *CachingFetcher) attempt(ctx context.Context, req Request, attempt int, logger zerolog.Logger) (fetched, failure.ClassifiedError) {
	if err := f.throttle.Acquire(ctx); err != nil {
		return fetched{}, interrupted(req, err)
	}

	httpReq, err := buildHTTPRequest(ctx, req)
	if err != nil {
		return fetched{}, &TransportError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
			URL:       req.target.String(),
			Err:       err,
		}
	}
	transport, err := f.transportFor(req, httpReq)
	if err != nil {
		return fetched{}, &TransportError{
			Message:   fmt.Sprintf("failed to create cookie store: %v", err),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
			URL:       req.target.String(),
			Err:       err,
		}
	}

	actx := audit.Context{RequestID: req.id, Attempt: attempt}
	startedAt := f.now()
	logger.Debug().Int("attempt", attempt).Str("method", httpReq.Method).Msg("sending request")

	resp, err := transport.Do(httpReq)
	if err != nil {
		f.auditor.AuditError(startedAt, httpReq, err, actx)
		if ctx.Err() != nil {
			return fetched{}, interrupted(req, ctx.Err())
		}
		f.backoff.OnFailure()
		return fetched{}, &TransportError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
			URL:       req.target.String(),
			Err:       err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.auditor.AuditResponse(startedAt, httpReq, resp, actx)
		if resp.StatusCode >= 400 {
			f.backoff.OnFailure()
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return fetched{}, &UpstreamStatusError{
			Message:    fmt.Sprintf("unexpected status %d", resp.StatusCode),
			Retryable:  false,
			StatusCode: resp.StatusCode,
			Status:     statusLine(resp),
			URL:        req.target.String(),
		}
	}

	// A 200 is audited only once its body has arrived in full.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.auditor.AuditError(startedAt, httpReq, err, actx)
		if ctx.Err() != nil {
			return fetched{}, interrupted(req, ctx.Err())
		}
		f.backoff.OnFailure()
		return fetched{}, &TransportError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
			URL:       req.target.String(),
			Err:       err,
		}
	}
	f.auditor.AuditResponse(startedAt, httpReq, resp, actx)
	f.backoff.OnSuccess()

	finalURL := req.target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = *resp.Request.URL
	}
	return fetched{
		url:     finalURL,
		headers: httpheader.FromHTTP(resp.Header),
		body:    body,
	}, nil
}

// transportFor scopes a cookie store to this call when the request carries
// cookies. Transports other than *http.Client get the cookies as a header.
func (f *CachingFetcher) transportFor(req Request, httpReq *http.Request) (Transport, error) {
	if len(req.cookies) == 0 {
		return f.transport, nil
	}
	client, ok := f.transport.(*http.Client)
	if !ok {
		for _, c := range req.cookies {
			httpReq.AddCookie(c)
		}
		return f.transport, nil
	}
	return withCookieJar(client, req.target, req.cookies)
}

func buildHTTPRequest(ctx context.Context, req Request) (*http.Request, error) {
	body, contentType := req.method.body()
	httpReq, err := http.NewRequestWithContext(ctx, req.method.name(), req.target.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if req.referrer != nil {
		ref := urlutil.StripFragment(*req.referrer)
		httpReq.Header.Set("Referer", ref.String())
	}
	return httpReq, nil
}

func responseFromRecord(rec cache.Record, stale bool) *Response {
	return newResponse(rec.SourceURL, rec.Headers, rec.Body, true, stale)
}

func statusLine(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}

func interrupted(req Request, err error) *TransportError {
	return &TransportError{
		Message:   err.Error(),
		Retryable: false,
		Cause:     ErrCauseInterrupted,
		URL:       req.target.String(),
		Err:       err,
	}
}

func isInterruption(err error) bool {
	var transportErr *TransportError
	if errors.As(err, &transportErr) && transportErr.Cause == ErrCauseInterrupted {
		return true
	}
	var retryErr *retry.RetryError
	return errors.As(err, &retryErr) && retryErr.Cause == retry.ErrInterrupted
}

// lastCause peels the exhaustion wrapper off err so callers see the error of
// the final attempt.
func lastCause(err failure.ClassifiedError) error {
	var retryErr *retry.RetryError
	if errors.As(err, &retryErr) && retryErr.Cause == retry.ErrExhaustedAttempts && retryErr.Err != nil {
		return retryErr.Err
	}
	return err
}

var nullSentinels = map[string]struct{}{
	"nil":       {},
	"undefined": {},
	"<nil>":     {},
}

// validateID rejects empty ids and textual null sentinels that usually mean
// a caller lost the real id somewhere upstream.
func validateID(id string) error {
	trimmed := strings.TrimSpace(id)
	lower := strings.ToLower(trimmed)
	_, sentinel := nullSentinels[lower]
	if trimmed == "" || strings.HasPrefix(lower, "null") || sentinel {
		return &RequestError{
			Message:   fmt.Sprintf("id %q is empty or a null sentinel", id),
			Retryable: false,
			Cause:     ErrCauseNullID,
			ID:        id,
		}
	}
	return nil
}
