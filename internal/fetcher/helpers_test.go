package fetcher_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/audit"
	"github.com/rohmanhakim/cached-fetcher/internal/cache"
	"github.com/rohmanhakim/cached-fetcher/internal/fetcher"
	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
	"github.com/rohmanhakim/cached-fetcher/pkg/retry"
	"github.com/rohmanhakim/cached-fetcher/pkg/timeutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errConnectionRefused = errors.New("dial tcp 127.0.0.1:1: connect: connection refused")

// mockTransport is a testify double for fetcher.Transport.
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if build, ok := args.Get(0).(func(*http.Request) *http.Response); ok {
		return build(req), args.Error(1)
	}
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

// mockStore is a testify double for cache.Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, id string) (cache.Record, bool, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(cache.Record)
	return rec, args.Bool(1), args.Error(2)
}

func (m *mockStore) Put(ctx context.Context, id string, sourceURL url.URL, headers httpheader.List, body []byte) error {
	args := m.Called(ctx, id, sourceURL, headers, body)
	return args.Error(0)
}

// recordingAuditor keeps every audit call in order.
type recordingAuditor struct {
	mu     sync.Mutex
	events []auditEvent
}

type auditEvent struct {
	startedAt time.Time
	method    string
	url       string
	status    int
	err       error
	actx      audit.Context
}

func (a *recordingAuditor) AuditResponse(startedAt time.Time, req *http.Request, resp *http.Response, actx audit.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, auditEvent{startedAt: startedAt, method: req.Method, url: req.URL.String(), status: resp.StatusCode, actx: actx})
}

func (a *recordingAuditor) AuditError(startedAt time.Time, req *http.Request, err error, actx audit.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, auditEvent{startedAt: startedAt, method: req.Method, url: req.URL.String(), err: err, actx: actx})
}

func (a *recordingAuditor) Events() []auditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]auditEvent, len(a.events))
	copy(out, a.events)
	return out
}

// fastSettings keeps tests quick: no step, no retry pause, millisecond backoff.
func fastSettings() fetcher.Settings {
	return fetcher.Settings{
		RequestStep: 0,
		RandomSeed:  1,
		Retry:       retry.NewRetryParam(0, 3),
		Backoff:     timeutil.NewBackoffParam(time.Millisecond, 10*time.Millisecond),
	}
}

func mustURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func okResponse(req *http.Request, body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": {"text/html"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}
