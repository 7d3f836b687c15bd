// Package core provides shared types and the source registry.
package core

import (
	"fmt"
	"strings"
	"time"
)

// Repository identifies a hosted repository by owner and name.
type Repository struct {
	Owner string
	Name  string
}

// ParseRepository parses an "owner/name" string.
func ParseRepository(s string) (Repository, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repository{}, fmt.Errorf("invalid repository %q: must be owner/name", s)
	}
	return Repository{Owner: parts[0], Name: parts[1]}, nil
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}

// VersionMap maps a tag or branch name to its 40-character content hash.
type VersionMap map[string]string

// LookupKind discriminates a LookupResult.
type LookupKind int

const (
	LookupVersions LookupKind = iota
	LookupRedirect
	LookupNotFound
)

func (k LookupKind) String() string {
	switch k {
	case LookupVersions:
		return "versions"
	case LookupRedirect:
		return "redirect"
	case LookupNotFound:
		return "notfound"
	}
	return "unknown"
}

// LookupResult is the outcome of resolving a repository's versions.
// Exactly one of Versions (LookupVersions) or Redirect (LookupRedirect)
// is meaningful; LookupNotFound carries no payload.
type LookupResult struct {
	Kind     LookupKind
	Versions VersionMap
	Redirect Repository
}

func Found(versions VersionMap) LookupResult {
	if versions == nil {
		versions = VersionMap{}
	}
	return LookupResult{Kind: LookupVersions, Versions: versions}
}

func Redirected(to Repository) LookupResult {
	return LookupResult{Kind: LookupRedirect, Redirect: to}
}

func NotFound() LookupResult {
	return LookupResult{Kind: LookupNotFound}
}

// ArchiveKind is the container format of a downloadable archive.
type ArchiveKind string

const (
	ArchiveUnknown ArchiveKind = ""
	ArchiveTar     ArchiveKind = "tar"
	ArchiveZip     ArchiveKind = "zip"
)

// ArchiveKindFromName classifies an asset by its filename suffix.
func ArchiveKindFromName(name string) ArchiveKind {
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return ArchiveTar
	case strings.HasSuffix(name, ".zip"):
		return ArchiveZip
	default:
		return ArchiveUnknown
	}
}

// Release describes the usable asset of a published release.
type Release struct {
	Tag      string
	Name     string
	AssetURL string
	Kind     ArchiveKind
	Size     int64
}

// PackageConfig is a parsed package descriptor (package.json).
type PackageConfig map[string]any

// ParsedName is a qualified name split into repository and subpath.
type ParsedName struct {
	Package string
	Path    string
}

// Endpoint is the identity a source advertises to the upstream pipeline.
type Endpoint struct {
	Name   string
	Remote string
}

// Config is the immutable per-source configuration.
type Config struct {
	Username  string
	Password  string
	TmpDir    string
	Timeout   time.Duration
	APIURL    string
	RemoteURL string
	RawURL    string
	UserAgent string
}

// HasCredentials reports whether requests should be authenticated.
func (c Config) HasCredentials() bool {
	return c.Username != ""
}
