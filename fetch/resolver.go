package fetch

import (
	"context"
	"fmt"
	"strings"

	"github.com/git-pkgs/ghsource/client"
	"github.com/git-pkgs/ghsource/internal/core"
)

// Size ceilings applied to downloads.
const (
	MaxReleaseSize int64 = 100_000_000
	MaxArchiveSize int64 = 10_000_000
)

// Artifact sources.
const (
	SourceRelease = "release"
	SourceArchive = "archive"
)

// ReleaseProber reports the usable release asset for a version, or nil when
// the version has no release with a recognized archive.
type ReleaseProber interface {
	CheckReleases(ctx context.Context, repo core.Repository, version string) (*core.Release, error)
}

// ArtifactInfo contains information about a downloadable artifact.
type ArtifactInfo struct {
	URL      string
	Filename string
	Kind     core.ArchiveKind
	// MaxSize is the largest accepted body in bytes. Zero means unbounded.
	MaxSize int64
	Accept  string
	// Authenticated requests carry the configured credentials.
	Authenticated bool
	Source        string
}

// Resolver determines where the contents of a version are downloaded from:
// the first asset of a matching release, or the source archive of the tag.
type Resolver struct {
	releases ReleaseProber
	urls     client.URLBuilder
}

// NewResolver creates a new artifact resolver.
func NewResolver(releases ReleaseProber, urls client.URLBuilder) *Resolver {
	return &Resolver{releases: releases, urls: urls}
}

// Resolve returns the artifact to download for repo at version.
func (r *Resolver) Resolve(ctx context.Context, repo core.Repository, version string) (*ArtifactInfo, error) {
	release, err := r.releases.CheckReleases(ctx, repo, version)
	if err != nil {
		return nil, err
	}

	if release == nil {
		url := r.urls.Archive(repo.String(), version)
		return &ArtifactInfo{
			URL:           url,
			Filename:      filenameFromURL(url),
			Kind:          core.ArchiveTar,
			MaxSize:       MaxArchiveSize,
			Accept:        "application/octet-stream",
			Authenticated: true,
			Source:        SourceArchive,
		}, nil
	}

	if release.Kind != core.ArchiveTar && release.Kind != core.ArchiveZip {
		return nil, &core.ProtocolError{
			Repository: repo.String(),
			Version:    version,
			Msg:        fmt.Sprintf("release found, but no archive present (asset %q)", release.Name),
		}
	}

	filename := release.Name
	if filename == "" {
		filename = filenameFromURL(release.AssetURL)
	}
	return &ArtifactInfo{
		URL:           release.AssetURL,
		Filename:      filename,
		Kind:          release.Kind,
		MaxSize:       MaxReleaseSize,
		Accept:        "application/octet-stream",
		Authenticated: true,
		Source:        SourceRelease,
	}, nil
}

func filenameFromURL(url string) string {
	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
