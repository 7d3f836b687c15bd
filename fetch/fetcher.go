// Package fetch provides streaming artifact downloading with retry, size
// ceilings, circuit breaking, and artifact resolution for release archives.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/dnscache"

	"github.com/git-pkgs/ghsource/internal/core"
)

var (
	ErrNotFound     = errors.New("artifact not found")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream unavailable")
	ErrTooLarge     = core.ErrTooLarge
)

// Artifact contains the response from fetching an upstream artifact.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// FetcherInterface defines the interface for artifact fetchers.
type FetcherInterface interface {
	Fetch(ctx context.Context, info *ArtifactInfo) (*Artifact, error)
	Head(ctx context.Context, url string) (size int64, contentType string, err error)
}

// Fetcher downloads release assets and source archives.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	authFn     func(url string) (headerName, headerValue string)
	username   string
	password   string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithTimeout bounds a whole download, body included.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithAuthFunc sets a function that returns auth headers for a given URL.
// The function receives the request URL and returns a header name and value.
// Return empty strings to skip authentication for that URL.
func WithAuthFunc(fn func(url string) (headerName, headerValue string)) Option {
	return func(f *Fetcher) {
		f.authFn = fn
	}
}

// WithBasicAuth attaches basic credentials to artifacts marked Authenticated.
func WithBasicAuth(username, password string) Option {
	return func(f *Fetcher) {
		f.username = username
		f.password = password
	}
}

var (
	dnsCache     *dnscache.Resolver
	dnsCacheOnce sync.Once
)

// sharedResolver returns the process-wide DNS cache, refreshed every five
// minutes by a single goroutine.
func sharedResolver() *dnscache.Resolver {
	dnsCacheOnce.Do(func() {
		dnsCache = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				dnsCache.Refresh(true)
			}
		}()
	})
	return dnsCache
}

// NewFetcher creates a new Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	resolver := sharedResolver()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP")
				},
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		userAgent:  "ghsource",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the artifact described by info. A declared Content-Length
// above info.MaxSize is rejected before the body is read, and the returned
// body fails with ErrTooLarge once more than MaxSize bytes have been read.
// The caller must close the returned Artifact.Body when done.
func (f *Fetcher) Fetch(ctx context.Context, info *ArtifactInfo) (*Artifact, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with 10% jitter to prevent thundering herd
			delay := f.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			jitter := time.Duration(float64(delay) * (rand.Float64() * 0.1))
			delay += jitter

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		artifact, err := f.doFetch(ctx, info)
		if err == nil {
			return artifact, nil
		}

		lastErr = err

		// Retry on rate limit and server errors
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

func (f *Fetcher) doFetch(ctx context.Context, info *ArtifactInfo) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	accept := info.Accept
	if accept == "" {
		accept = "*/*"
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)
	f.authenticate(req, info.Authenticated)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching artifact: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		size := int64(-1)
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = n
			}
		}

		body := resp.Body
		if info.MaxSize > 0 {
			if size > info.MaxSize {
				_ = resp.Body.Close()
				return nil, tooLarge(info.URL)
			}
			body = &limitedBody{ReadCloser: resp.Body, url: info.URL, max: info.MaxSize}
		}

		return &Artifact{
			Body:        body,
			Size:        size,
			ContentType: resp.Header.Get("Content-Type"),
			ETag:        resp.Header.Get("ETag"),
		}, nil

	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, &core.TransferError{URL: info.URL, StatusCode: resp.StatusCode, Msg: "bad response code", Err: ErrNotFound}

	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, &core.TransferError{URL: info.URL, StatusCode: resp.StatusCode, Msg: "bad response code", Err: ErrRateLimited}

	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, &core.TransferError{URL: info.URL, StatusCode: resp.StatusCode, Msg: "bad response code", Err: ErrUpstreamDown}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, &core.TransferError{URL: info.URL, StatusCode: resp.StatusCode, Msg: "bad response code: " + string(body)}
	}
}

func (f *Fetcher) authenticate(req *http.Request, basic bool) {
	if basic && f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}
	if f.authFn != nil {
		if name, value := f.authFn(req.URL.String()); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}
}

// Head checks if an artifact exists and returns its metadata without downloading.
func (f *Fetcher) Head(ctx context.Context, url string) (size int64, contentType string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	f.authenticate(req, true)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("head request: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, "", ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return 0, "", &core.TransferError{URL: url, StatusCode: resp.StatusCode, Msg: "bad response code"}
	}

	size = -1
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			size = n
		}
	}

	return size, resp.Header.Get("Content-Type"), nil
}

func tooLarge(url string) error {
	return &core.TransferError{URL: url, Msg: "response too large", Err: ErrTooLarge}
}

// limitedBody fails reads once more than max bytes have passed through,
// covering responses that omit or understate Content-Length.
type limitedBody struct {
	io.ReadCloser
	url  string
	max  int64
	read int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.read > b.max {
		return 0, tooLarge(b.url)
	}
	if rem := b.max - b.read + 1; int64(len(p)) > rem {
		p = p[:rem]
	}
	n, err := b.ReadCloser.Read(p)
	b.read += int64(n)
	if b.read > b.max {
		return n - int(b.read-b.max), tooLarge(b.url)
	}
	return n, err
}
