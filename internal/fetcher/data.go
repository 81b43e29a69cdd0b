package fetcher

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/cached-fetcher/pkg/httpheader"
)

// Method is the request method. Only Get and Post implement it.
type Method interface {
	name() string
	// body returns the encoded payload and its content type, or nil.
	body() (io.Reader, string)
}

type Get struct{}

func (Get) name() string {
	return http.MethodGet
}

func (Get) body() (io.Reader, string) {
	return nil, ""
}

// Post submits Form url-encoded.
type Post struct {
	Form url.Values
}

func (Post) name() string {
	return http.MethodPost
}

func (p Post) body() (io.Reader, string) {
	return strings.NewReader(p.Form.Encode()), "application/x-www-form-urlencoded"
}

// Request describes one logical fetch. The id is the cache key; two requests
// with the same id share a cached record whatever their targets.
type Request struct {
	id       string
	target   url.URL
	method   Method
	referrer *url.URL
	cookies  []*http.Cookie
	maxAge   *time.Duration
}

type RequestOption func(*Request)

// WithReferrer sends ref as the Referer header, minus its fragment.
func WithReferrer(ref url.URL) RequestOption {
	return func(r *Request) {
		r.referrer = &ref
	}
}

// WithCookies seeds the per-call cookie store.
func WithCookies(cookies ...*http.Cookie) RequestOption {
	return func(r *Request) {
		r.cookies = append(r.cookies, cookies...)
	}
}

// WithMaxAge makes cached copies older than maxAge stale. Without it any
// cached copy is fresh.
func WithMaxAge(maxAge time.Duration) RequestOption {
	return func(r *Request) {
		r.maxAge = &maxAge
	}
}

func NewGetRequest(id string, target url.URL, opts ...RequestOption) Request {
	return newRequest(id, target, Get{}, opts)
}

func NewPostRequest(id string, target url.URL, form url.Values, opts ...RequestOption) Request {
	return newRequest(id, target, Post{Form: cloneValues(form)}, opts)
}

func newRequest(id string, target url.URL, method Method, opts []RequestOption) Request {
	r := Request{
		id:     id,
		target: target,
		method: method,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r Request) ID() string {
	return r.id
}

func (r Request) Target() url.URL {
	return r.target
}

func (r Request) Method() Method {
	return r.method
}

func (r Request) Referrer() (url.URL, bool) {
	if r.referrer == nil {
		return url.URL{}, false
	}
	return *r.referrer, true
}

func (r Request) Cookies() []*http.Cookie {
	cookies := make([]*http.Cookie, len(r.cookies))
	copy(cookies, r.cookies)
	return cookies
}

func (r Request) MaxAge() *time.Duration {
	if r.maxAge == nil {
		return nil
	}
	maxAge := *r.maxAge
	return &maxAge
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return url.Values{}
	}
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// ErrStreamClosed is returned when a response body is read after Close.
var ErrStreamClosed = errors.New("response body is closed")

// Response is what a fetch hands back. The caller owns it and must Close it.
type Response struct {
	url       url.URL
	headers   httpheader.List
	body      *Body
	fromCache bool
	stale     bool
}

func newResponse(u url.URL, headers httpheader.List, body []byte, fromCache bool, stale bool) *Response {
	return &Response{
		url:       u,
		headers:   headers,
		body:      newBody(body),
		fromCache: fromCache,
		stale:     stale,
	}
}

// URL is the final URL after redirects, or the recorded source URL for a
// cached response.
func (r *Response) URL() url.URL {
	return r.url
}

func (r *Response) Headers() httpheader.List {
	return r.headers.Clone()
}

// FirstHeader returns the first value of the named header, case-insensitive.
func (r *Response) FirstHeader(name string) (string, bool) {
	return r.headers.Get(name)
}

func (r *Response) ContentType() string {
	ct, _ := r.headers.Get("Content-Type")
	return ct
}

func (r *Response) Body() io.ReadCloser {
	return r.body
}

func (r *Response) FromCache() bool {
	return r.fromCache
}

// Stale reports a cached copy returned because the network fetch failed.
func (r *Response) Stale() bool {
	return r.stale
}

func (r *Response) Close() error {
	return r.body.Close()
}

// Body is a single-use in-memory reader. Close is idempotent and releases
// the buffer; reads after Close fail with ErrStreamClosed.
type Body struct {
	mu     sync.Mutex
	reader *bytes.Reader
}

func newBody(data []byte) *Body {
	return &Body{reader: bytes.NewReader(data)}
}

func (b *Body) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.reader == nil {
		return 0, ErrStreamClosed
	}
	return b.reader.Read(p)
}

func (b *Body) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reader = nil
	return nil
}

// fetched is the outcome of one successful network attempt.
type fetched struct {
	url     url.URL
	headers httpheader.List
	body    []byte
}
