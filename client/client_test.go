package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultClient_UserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := DefaultClient()
	_, _ = client.GetBody(context.Background(), server.URL)

	if gotUA != "ghsource" {
		t.Errorf("default User-Agent = %q, want %q", gotUA, "ghsource")
	}
}

func TestClient_WithUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := DefaultClient().WithUserAgent("custom-agent/2.0")
	_, _ = client.GetBody(context.Background(), server.URL)

	if gotUA != "custom-agent/2.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "custom-agent/2.0")
	}
}

func TestClient_Head_UserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := DefaultClient().WithUserAgent("head-test/1.0")
	_, _ = client.Head(context.Background(), server.URL)

	if gotUA != "head-test/1.0" {
		t.Errorf("Head User-Agent = %q, want %q", gotUA, "head-test/1.0")
	}
}

func TestClient_BasicAuth(t *testing.T) {
	var user, pass string
	var ok bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := DefaultClient().WithBasicAuth("octocat", "s3cret")
	if _, err := client.GetBody(context.Background(), server.URL); err != nil {
		t.Fatalf("GetBody failed: %v", err)
	}
	if !ok || user != "octocat" || pass != "s3cret" {
		t.Errorf("basic auth = (%q, %q, %v), want (octocat, s3cret, true)", user, pass, ok)
	}
	if !client.HasAuth() {
		t.Error("HasAuth = false, want true")
	}
}

func TestClient_NoAuthByDefault(t *testing.T) {
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, hadAuth = r.BasicAuth()
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if _, err := DefaultClient().GetBody(context.Background(), server.URL); err != nil {
		t.Fatalf("GetBody failed: %v", err)
	}
	if hadAuth {
		t.Error("unauthenticated client sent credentials")
	}
}

func TestClient_GetBodyHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()

	_, err := DefaultClient().GetBody(context.Background(), server.URL)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T: %v", err, err)
	}
	if !httpErr.IsNotFound() {
		t.Errorf("StatusCode = %d, want 404", httpErr.StatusCode)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := NewClient(WithBaseDelay(5 * time.Millisecond))
	body, err := client.GetText(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetText failed: %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestClient_RateLimitExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(WithMaxRetries(1), WithBaseDelay(time.Millisecond))
	_, err := client.GetBody(context.Background(), server.URL)
	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("expected *RateLimitError, got %v", err)
	}
	if rlErr.RetryAfter != 7 {
		t.Errorf("RetryAfter = %d, want 7", rlErr.RetryAfter)
	}
}

func TestClient_WithoutRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := DefaultClient().WithoutRedirects()
	req, _ := http.NewRequest(http.MethodGet, server.URL+"/old", nil)
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusMovedPermanently {
		t.Errorf("StatusCode = %d, want 301", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/new" {
		t.Errorf("Location = %q, want /new", loc)
	}
}

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"full_name":"octo/hello"}`))
	}))
	defer server.Close()

	var v struct {
		FullName string `json:"full_name"`
	}
	if err := DefaultClient().GetJSON(context.Background(), server.URL, &v); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if v.FullName != "octo/hello" {
		t.Errorf("FullName = %q, want octo/hello", v.FullName)
	}
}
