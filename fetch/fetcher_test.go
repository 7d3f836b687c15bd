package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/git-pkgs/ghsource/internal/core"
)

func TestFetchSuccess(t *testing.T) {
	content := "test artifact content"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Length", "21")
		w.Header().Set("ETag", `"abc123"`)
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	f := NewFetcher()
	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/test.tgz"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if artifact.Size != 21 {
		t.Errorf("Size = %d, want 21", artifact.Size)
	}
	if artifact.ContentType != "application/gzip" {
		t.Errorf("ContentType = %q, want %q", artifact.ContentType, "application/gzip")
	}
	if artifact.ETag != `"abc123"` {
		t.Errorf("ETag = %q, want %q", artifact.ETag, `"abc123"`)
	}

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != content {
		t.Errorf("body = %q, want %q", string(body), content)
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/missing.tgz"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Fetch = %v, want ErrNotFound", err)
	}
	var transferErr *core.TransferError
	if !errors.As(err, &transferErr) || transferErr.StatusCode != http.StatusNotFound {
		t.Errorf("Fetch = %v, want TransferError with status 404", err)
	}
}

func TestFetchRateLimitRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	f := NewFetcher(WithBaseDelay(10 * time.Millisecond))
	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/test.tgz"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchServerErrorRetry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	f := NewFetcher(WithBaseDelay(10 * time.Millisecond))
	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/test.tgz"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestFetchMaxRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	f := NewFetcher(WithMaxRetries(2), WithBaseDelay(10*time.Millisecond))
	_, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/test.tgz"})
	if err == nil {
		t.Error("expected error after max retries")
	}
	if !errors.Is(err, ErrUpstreamDown) {
		t.Errorf("expected ErrUpstreamDown, got %v", err)
	}

	// Initial attempt + 2 retries = 3 total
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	f := NewFetcher()
	_, err := f.Fetch(ctx, &ArtifactInfo{URL: server.URL + "/test.tgz"})
	if err == nil {
		t.Error("expected error on context cancellation")
	}
}

func TestFetchUnknownSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Chunked encoding, no Content-Length
		w.Header().Set("Transfer-Encoding", "chunked")
		_, _ = w.Write([]byte("chunk1"))
	}))
	defer server.Close()

	f := NewFetcher()
	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/test.tgz"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if artifact.Size != -1 {
		t.Errorf("Size = %d, want -1 for unknown", artifact.Size)
	}
}

func TestHead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("Method = %s, want HEAD", r.Method)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", "12345")
	}))
	defer server.Close()

	f := NewFetcher()
	size, contentType, err := f.Head(context.Background(), server.URL+"/test.tgz")
	if err != nil {
		t.Fatalf("Head failed: %v", err)
	}

	if size != 12345 {
		t.Errorf("size = %d, want 12345", size)
	}
	if contentType != "application/octet-stream" {
		t.Errorf("contentType = %q, want %q", contentType, "application/octet-stream")
	}
}

func TestHeadNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f := NewFetcher()
	_, _, err := f.Head(context.Background(), server.URL+"/missing.tgz")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Head = %v, want ErrNotFound", err)
	}
}

func TestFetchUserAgent(t *testing.T) {
	var receivedUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(WithUserAgent("custom-agent/2.0"))
	artifact, _ := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/test.tgz"})
	if artifact != nil {
		_ = artifact.Body.Close()
	}

	if receivedUA != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q, want %q", receivedUA, "custom-agent/2.0")
	}
}

func TestFetchLargeArtifact(t *testing.T) {
	// 1MB artifact
	content := strings.Repeat("x", 1024*1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	f := NewFetcher()
	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/large.tgz"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(body) != len(content) {
		t.Errorf("body length = %d, want %d", len(body), len(content))
	}
}

func TestFetchRetryWithJitter(t *testing.T) {
	attempts := 0
	var retryTimes []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		retryTimes = append(retryTimes, time.Now())
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("success"))
	}))
	defer server.Close()

	f := NewFetcher(WithBaseDelay(100 * time.Millisecond))
	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/test.tgz"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	// Verify that delays between retries vary (jitter is applied)
	// With 100ms base delay and exponential backoff:
	// First retry: ~100ms + jitter (0-10ms)
	// Second retry: ~200ms + jitter (0-20ms)
	if len(retryTimes) >= 2 {
		firstDelay := retryTimes[1].Sub(retryTimes[0])
		// First retry should be between 100ms and 130ms (100ms + max 10% jitter + some tolerance)
		if firstDelay < 90*time.Millisecond || firstDelay > 150*time.Millisecond {
			t.Logf("First retry delay: %v (expected ~100ms with jitter)", firstDelay)
		}
	}
}

func TestFetchDNSCaching(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher()

	// Make multiple requests to the same host
	for i := range 3 {
		artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/test.tgz"})
		if err != nil {
			t.Fatalf("Fetch %d failed: %v", i+1, err)
		}
		_ = artifact.Body.Close()
	}

	if requestCount != 3 {
		t.Errorf("requestCount = %d, want 3", requestCount)
	}
}

func TestFetchRejectsDeclaredSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "2048")
		_, _ = w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	f := NewFetcher()
	_, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/big.tar.gz", MaxSize: 1024})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Fetch = %v, want ErrTooLarge", err)
	}
	var transferErr *core.TransferError
	if !errors.As(err, &transferErr) {
		t.Errorf("expected *core.TransferError, got %T", err)
	}
}

func TestFetchCountsUndeclaredSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Transfer-Encoding", "chunked")
		for range 4 {
			_, _ = w.Write([]byte(strings.Repeat("x", 512)))
			w.(http.Flusher).Flush()
		}
	}))
	defer server.Close()

	f := NewFetcher()
	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/big.tar.gz", MaxSize: 1024})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(artifact.Body)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("ReadAll = %v, want ErrTooLarge", err)
	}
	if len(body) != 1024 {
		t.Errorf("read %d bytes before failing, want 1024", len(body))
	}
}

func TestFetchWithinCeiling(t *testing.T) {
	content := strings.Repeat("y", 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	f := NewFetcher()
	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/ok.tar.gz", MaxSize: 1024})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer func() { _ = artifact.Body.Close() }()

	body, err := io.ReadAll(artifact.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(body) != content {
		t.Errorf("body length = %d, want %d", len(body), len(content))
	}
}

func TestFetchAcceptAndAuth(t *testing.T) {
	var accept, user string
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		user, _, hadAuth = r.BasicAuth()
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	f := NewFetcher(WithBasicAuth("octocat", "s3cret"))

	artifact, err := f.Fetch(context.Background(), &ArtifactInfo{
		URL:           server.URL + "/asset",
		Accept:        "application/octet-stream",
		Authenticated: true,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	_ = artifact.Body.Close()

	if accept != "application/octet-stream" {
		t.Errorf("Accept = %q, want application/octet-stream", accept)
	}
	if !hadAuth || user != "octocat" {
		t.Errorf("basic auth = (%q, %v), want (octocat, true)", user, hadAuth)
	}

	artifact, err = f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/public"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	_ = artifact.Body.Close()

	if accept != "*/*" {
		t.Errorf("default Accept = %q, want */*", accept)
	}
	if hadAuth {
		t.Error("unauthenticated artifact sent credentials")
	}
}

func TestFetchClientErrorNotRetried(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	}))
	defer server.Close()

	f := NewFetcher(WithBaseDelay(time.Millisecond))
	_, err := f.Fetch(context.Background(), &ArtifactInfo{URL: server.URL + "/x"})
	var transferErr *core.TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected *core.TransferError, got %v", err)
	}
	if transferErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", transferErr.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestNewFetcherSharesResolver(t *testing.T) {
	if sharedResolver() != sharedResolver() {
		t.Fatal("expected a single DNS cache")
	}

	_ = NewFetcher()
	before := runtime.NumGoroutine()
	for range 50 {
		_ = NewFetcher()
	}
	if grown := runtime.NumGoroutine() - before; grown > 5 {
		t.Errorf("goroutines grew by %d after creating 50 fetchers", grown)
	}
}
