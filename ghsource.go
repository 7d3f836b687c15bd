// Package ghsource resolves and downloads packages hosted on GitHub.
//
// A source looks up the tags and branches of a repository, detects renamed
// and missing repositories, fetches package.json at a commit, and unpacks a
// version into a directory. Release assets (.tar.gz, .tgz or .zip) are
// preferred over the tag's source archive.
//
// Basic usage:
//
//	src, err := ghsource.New("github", ghsource.Config{TmpDir: os.TempDir()}, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	repo, _ := ghsource.ParseRepository("octo/hello")
//	res, err := src.Lookup(context.Background(), repo)
//	if err != nil {
//		log.Fatal(err)
//	}
//	switch res.Kind {
//	case ghsource.LookupVersions:
//		hash := res.Versions["v1.0.0"]
//		err = src.Download(context.Background(), repo, "v1.0.0", hash, "./hello")
//	case ghsource.LookupRedirect:
//		fmt.Println("moved to", res.Redirect)
//	case ghsource.LookupNotFound:
//		fmt.Println("no such repository")
//	}
package ghsource

import (
	"context"

	"github.com/git-pkgs/purl"

	"github.com/git-pkgs/ghsource/client"
	"github.com/git-pkgs/ghsource/internal/core"
	"github.com/git-pkgs/ghsource/internal/github"
	"github.com/git-pkgs/ghsource/internal/refs"
)

// Re-export types from internal/core
type (
	// Source is the interface implemented by package sources.
	Source = core.Source

	// Config is the immutable configuration of a source.
	Config = core.Config

	// Repository identifies a repository by owner and name.
	Repository = core.Repository

	// LookupResult is the outcome of resolving a repository's versions.
	LookupResult = core.LookupResult

	// LookupKind discriminates a LookupResult.
	LookupKind = core.LookupKind

	// VersionMap maps tag and branch names to commit hashes.
	VersionMap = core.VersionMap

	// PackageConfig is a parsed package.json.
	PackageConfig = core.PackageConfig

	// Descriptor is a typed view of the commonly used package.json fields.
	Descriptor = core.Descriptor

	// ParsedName is a qualified name split into repository and subpath.
	ParsedName = core.ParsedName

	// Endpoint is the identity a source advertises.
	Endpoint = core.Endpoint

	// Release describes the usable asset of a published release.
	Release = core.Release

	// ArchiveKind is the container format of an archive.
	ArchiveKind = core.ArchiveKind
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for the GitHub API.
	Client = client.Client

	// URLBuilder constructs URLs for a repository.
	URLBuilder = client.URLBuilder

	// RateLimiter controls request pacing.
	RateLimiter = client.RateLimiter
)

// Ref listing
type (
	// Lister lists the tags and branches of a remote repository.
	Lister = refs.Lister

	// Ref is one advertised reference.
	Ref = refs.Ref

	// GoGitLister lists refs in-process with go-git.
	GoGitLister = refs.GoGitLister

	// ExecLister lists refs with the git command line.
	ExecLister = refs.ExecLister
)

// Re-export constants
const (
	LookupVersions = core.LookupVersions
	LookupRedirect = core.LookupRedirect
	LookupNotFound = core.LookupNotFound

	ArchiveTar = core.ArchiveTar
	ArchiveZip = core.ArchiveZip
)

// Re-export errors
var (
	ErrNotFound           = client.ErrNotFound
	ErrTooLarge           = core.ErrTooLarge
	ErrRepositoryNotFound = refs.ErrRepositoryNotFound
)

// Error types
type (
	HTTPError                = client.HTTPError
	NotFoundError            = client.NotFoundError
	RateLimitError           = client.RateLimitError
	ProtocolError            = core.ProtocolError
	TransferError            = core.TransferError
	IOError                  = core.IOError
	PlatformUnsupportedError = core.PlatformUnsupportedError
)

// GitHub source options
type (
	// GitHubOption configures the GitHub source.
	GitHubOption = github.Option

	// ProgressFunc observes download progress.
	ProgressFunc = github.ProgressFunc
)

var (
	WithLogger   = github.WithLogger
	WithLister   = github.WithLister
	WithFetcher  = github.WithFetcher
	WithRunner   = github.WithRunner
	WithProgress = github.WithProgress
)

// New creates a new source by name.
// If client is nil, DefaultClient() is used.
//
// Supported sources: "github"
func New(name string, cfg Config, c *Client) (Source, error) {
	return core.New(name, cfg, c)
}

// NewGitHub creates the GitHub source with source-specific options.
func NewGitHub(cfg Config, c *Client, opts ...GitHubOption) Source {
	return github.New(cfg, c, opts...)
}

// NewGoGitLister returns a ref lister that authenticates with the given
// basic credentials. An empty username lists anonymously.
func NewGoGitLister(username, password string) *GoGitLister {
	return refs.NewGoGitLister(username, password)
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// Option configures a Client.
type Option = client.Option

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// SupportedSources returns all registered source names.
func SupportedSources() []string {
	return core.SupportedSources()
}

// ParseRepository parses an "owner/name" string.
func ParseRepository(s string) (Repository, error) {
	return core.ParseRepository(s)
}

// BuildURLs returns a map of all non-empty URLs for a repository.
// Keys are "repository", "releases", "archive", "git" and "purl".
func BuildURLs(urls URLBuilder, repo, version string) map[string]string {
	return client.BuildURLs(urls, repo, version)
}

// DescriptorOf extracts the commonly used fields of a package.json.
func DescriptorOf(cfg PackageConfig) Descriptor {
	return core.DescriptorOf(cfg)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// RepositoryFromPURL returns the repository and optional version named by a
// pkg:github PURL.
func RepositoryFromPURL(purl string) (Repository, string, error) {
	return core.RepositoryFromPURL(purl)
}

// NewFromPURL creates a source from a PURL and returns the parsed components.
// Returns the source, repository, and version (empty if not in PURL).
func NewFromPURL(purl string, cfg Config, c *Client) (Source, Repository, string, error) {
	return core.NewFromPURL(purl, cfg, c)
}

// BulkLookup resolves multiple repositories in parallel.
// Individual lookup errors are silently ignored - those repositories are omitted from results.
// Returns a map of "owner/name" to LookupResult.
func BulkLookup(ctx context.Context, src Source, repos []Repository) map[string]LookupResult {
	return core.BulkLookup(ctx, src, repos)
}

// BulkLookupWithConcurrency resolves repositories with a custom concurrency limit.
func BulkLookupWithConcurrency(ctx context.Context, src Source, repos []Repository, concurrency int) map[string]LookupResult {
	return core.BulkLookupWithConcurrency(ctx, src, repos, concurrency)
}

// BulkPackageConfigs fetches package.json for multiple repositories in
// parallel. hashes maps "owner/name" to a commit hash.
func BulkPackageConfigs(ctx context.Context, src Source, hashes map[string]string) map[string]PackageConfig {
	return core.BulkPackageConfigs(ctx, src, hashes)
}
