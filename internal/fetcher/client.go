package fetcher

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rohmanhakim/cached-fetcher/internal/config"
	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// ClientParam configures the HTTP client built by NewHTTPClient.
type ClientParam struct {
	ConnectTimeout time.Duration
	SocketTimeout  time.Duration
	// Zero means no overall limit.
	RequestTimeout time.Duration
	// http://, https:// or socks5:// URL. Empty means direct.
	Proxy        string
	UserAgent    string
	MaxRedirects int
}

func ClientParamFromConfig(cfg config.Config) ClientParam {
	return ClientParam{
		ConnectTimeout: cfg.ConnectTimeout(),
		SocketTimeout:  cfg.SocketTimeout(),
		RequestTimeout: cfg.RequestTimeout(),
		Proxy:          cfg.Proxy(),
		UserAgent:      cfg.UserAgent(),
		MaxRedirects:   cfg.MaxRedirects(),
	}
}

// NewHTTPClient builds the client used as the fetcher's Transport.
func NewHTTPClient(param ClientParam) (*http.Client, error) {
	dialer := &net.Dialer{
		Timeout:   param.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.ResponseHeaderTimeout = param.SocketTimeout
	transport.Proxy = nil

	if param.Proxy != "" {
		proxyURL, err := url.Parse(param.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", param.Proxy, err)
		}
		switch proxyURL.Scheme {
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		case "socks5":
			var auth *proxy.Auth
			if proxyURL.User != nil {
				password, _ := proxyURL.User.Password()
				auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
			}
			socks, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, dialer)
			if err != nil {
				return nil, fmt.Errorf("socks5 proxy %q: %w", param.Proxy, err)
			}
			contextDialer, ok := socks.(proxy.ContextDialer)
			if !ok {
				return nil, fmt.Errorf("socks5 proxy %q: dialer does not support contexts", param.Proxy)
			}
			transport.DialContext = contextDialer.DialContext
		default:
			return nil, fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
		}
	}

	return &http.Client{
		Transport:     &userAgentTransport{userAgent: param.UserAgent, next: transport},
		CheckRedirect: redirectPolicy(param.MaxRedirects),
		Timeout:       param.RequestTimeout,
	}, nil
}

func redirectPolicy(maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if maxRedirects <= 0 {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}
}

// userAgentTransport sets User-Agent on requests that do not carry one.
type userAgentTransport struct {
	userAgent string
	next      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" || req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	out := req.Clone(req.Context())
	out.Header.Set("User-Agent", t.userAgent)
	return t.next.RoundTrip(out)
}

// withCookieJar returns a shallow copy of client with a fresh jar seeded
// with cookies for target. Cookies the server sets during the call, redirects
// included, stay in that jar and are dropped with it.
func withCookieJar(client *http.Client, target url.URL, cookies []*http.Cookie) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	jar.SetCookies(&target, cookies)
	scoped := *client
	scoped.Jar = jar
	return &scoped, nil
}
