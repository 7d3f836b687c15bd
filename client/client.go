// Package client provides the HTTP client used to talk to the hosting API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
)

// ErrNotFound is returned when a resource does not exist upstream.
var ErrNotFound = errors.New("not found")

// HTTPError represents a non-success HTTP response.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// IsNotFound returns true if the error represents a 404 response.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// NotFoundError wraps ErrNotFound with the missing repository.
type NotFoundError struct {
	Source     string
	Repository string
	Version    string
}

func (e *NotFoundError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("%s: repository %s version %s not found", e.Source, e.Repository, e.Version)
	}
	return fmt.Sprintf("%s: repository %s not found", e.Source, e.Repository)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// RateLimitError is returned when the API rate limits requests.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// RateLimiter controls request pacing.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Client is an HTTP client with retry logic for the hosting API.
type Client struct {
	HTTPClient  *http.Client
	UserAgent   string
	MaxRetries  int
	BaseDelay   time.Duration
	RateLimiter RateLimiter

	username string
	password string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.HTTPClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.MaxRetries = n
	}
}

// WithBaseDelay sets the initial backoff interval between retries.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.BaseDelay = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.HTTPClient = hc
	}
}

// WithRateLimiter sets a limiter consulted before every request.
func WithRateLimiter(rl RateLimiter) Option {
	return func(c *Client) {
		c.RateLimiter = rl
	}
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return NewClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		UserAgent:  "ghsource",
		MaxRetries: 5,
		BaseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithUserAgent returns a copy of the client using the given User-Agent.
func (c *Client) WithUserAgent(ua string) *Client {
	cp := *c
	cp.UserAgent = ua
	return &cp
}

// WithRetries returns a copy of the client that retries transient failures
// at most n times. Zero surfaces the first failure.
func (c *Client) WithRetries(n int) *Client {
	cp := *c
	cp.MaxRetries = n
	return &cp
}

// WithBasicAuth returns a copy of the client that attaches basic
// credentials to every request. An empty username disables auth.
func (c *Client) WithBasicAuth(username, password string) *Client {
	cp := *c
	cp.username = username
	cp.password = password
	return &cp
}

// HasAuth reports whether credentials are attached to requests.
func (c *Client) HasAuth() bool {
	return c.username != ""
}

// WithoutRedirects returns a copy of the client whose responses are never
// followed, so 3xx status codes and Location headers reach the caller.
func (c *Client) WithoutRedirects() *Client {
	cp := *c
	hc := *c.HTTPClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	cp.HTTPClient = &hc
	return &cp
}

// Do sends a single request with the client's User-Agent and credentials.
// It does not retry and does not inspect the status code.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.RateLimiter != nil {
		if err := c.RateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req = req.WithContext(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return c.HTTPClient.Do(req)
}

// GetBody fetches url and returns the response body. Non-200 responses are
// returned as *HTTPError; 429 and 5xx responses are retried.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.retry(ctx, func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.Do(ctx, req)
		if err != nil {
			return false, fmt.Errorf("fetching %s: %w", url, err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusOK:
			body, err = io.ReadAll(resp.Body)
			if err != nil {
				return false, fmt.Errorf("reading %s: %w", url, err)
			}
			return false, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
			return true, &RateLimitError{RetryAfter: retryAfter}

		case resp.StatusCode >= 500:
			return true, &HTTPError{StatusCode: resp.StatusCode, URL: url}

		default:
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return false, &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: string(snippet)}
		}
	})
	return body, err
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// GetText fetches url and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// Head issues a HEAD request and returns the response headers.
func (c *Client) Head(ctx context.Context, url string) (http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("head request: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url}
	}
	return resp.Header, nil
}

// retry runs op until it succeeds, reports a non-retryable error, or the
// retry budget is spent. Delays follow an exponential backoff.
func (c *Client) retry(ctx context.Context, op func() (retryable bool, err error)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.BaseDelay
	b.MaxElapsedTime = 0
	b.Reset()

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.NextBackOff()):
			}
		}

		retryable, err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}
