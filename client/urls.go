package client

import (
	"fmt"
	"strings"
)

const (
	DefaultAPIURL    = "https://api.github.com"
	DefaultRemoteURL = "https://github.com"
	DefaultRawURL    = "https://raw.githubusercontent.com"
)

// URLBuilder constructs URLs for a hosted repository.
// repo is always an "owner/name" pair.
type URLBuilder interface {
	Repository(repo string) string
	Releases(repo string) string
	Archive(repo, version string) string
	Raw(repo, rev, file string) string
	Git(repo string) string
	PURL(repo, version string) string
}

// BaseURLs provides the default URLBuilder implementation for GitHub-shaped
// hosts. Empty fields fall back to the public github.com endpoints.
type BaseURLs struct {
	APIURL    string
	RemoteURL string
	RawURL    string
}

// NewBaseURLs trims trailing slashes and fills in defaults.
func NewBaseURLs(apiURL, remoteURL, rawURL string) *BaseURLs {
	return &BaseURLs{
		APIURL:    trimOr(apiURL, DefaultAPIURL),
		RemoteURL: trimOr(remoteURL, DefaultRemoteURL),
		RawURL:    trimOr(rawURL, DefaultRawURL),
	}
}

func trimOr(v, def string) string {
	if v == "" {
		return def
	}
	return strings.TrimSuffix(v, "/")
}

func (b *BaseURLs) Repository(repo string) string {
	return fmt.Sprintf("%s/repos/%s", b.APIURL, repo)
}

func (b *BaseURLs) Releases(repo string) string {
	return fmt.Sprintf("%s/repos/%s/releases", b.APIURL, repo)
}

func (b *BaseURLs) Archive(repo, version string) string {
	return fmt.Sprintf("%s/%s/archive/%s.tar.gz", b.RemoteURL, repo, version)
}

func (b *BaseURLs) Raw(repo, rev, file string) string {
	return fmt.Sprintf("%s/%s/%s/%s", b.RawURL, repo, rev, file)
}

func (b *BaseURLs) Git(repo string) string {
	return fmt.Sprintf("%s/%s.git", b.RemoteURL, repo)
}

func (b *BaseURLs) PURL(repo, version string) string {
	if version != "" {
		return fmt.Sprintf("pkg:github/%s@%s", strings.ToLower(repo), version)
	}
	return fmt.Sprintf("pkg:github/%s", strings.ToLower(repo))
}

// BuildURLs returns a map of all non-empty URLs for a repository.
// Keys are "repository", "releases", "archive", "git" and "purl".
func BuildURLs(urls URLBuilder, repo, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Repository(repo); v != "" {
		result["repository"] = v
	}
	if v := urls.Releases(repo); v != "" {
		result["releases"] = v
	}
	if version != "" {
		if v := urls.Archive(repo, version); v != "" {
			result["archive"] = v
		}
	}
	if v := urls.Git(repo); v != "" {
		result["git"] = v
	}
	if v := urls.PURL(repo, version); v != "" {
		result["purl"] = v
	}
	return result
}
