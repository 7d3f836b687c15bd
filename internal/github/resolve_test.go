package github

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/ghsource/fetch"
	"github.com/git-pkgs/ghsource/internal/core"
)

func TestResolveAndStat(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repos/octo/hello/releases", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(releaseWithAsset(serverURL, "hello-1.0.0.tar.gz")))
	})
	mux.HandleFunc("/api/repos/octo/hello/releases/assets/1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Length", "2048")
	})

	src, server := newTestSource(t, mux)
	serverURL = server.URL

	info, err := src.Resolve(context.Background(), hello, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, fetch.SourceRelease, info.Source)
	assert.Equal(t, core.ArchiveTar, info.Kind)
	assert.Equal(t, fetch.MaxReleaseSize, info.MaxSize)

	size, contentType, err := src.Stat(context.Background(), info)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), size)
	assert.Equal(t, "application/gzip", contentType)
}

func TestResolveFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repos/octo/hello/releases", releasesHandler(`[]`))

	src, server := newTestSource(t, mux)

	info, err := src.Resolve(context.Background(), hello, "v2.0.0")
	require.NoError(t, err)
	assert.Equal(t, fetch.SourceArchive, info.Source)
	assert.Equal(t, server.URL+"/remote/octo/hello/archive/v2.0.0.tar.gz", info.URL)

	_, _, err = src.Stat(context.Background(), info)
	assert.ErrorIs(t, err, fetch.ErrNotFound)
}
