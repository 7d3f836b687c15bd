// Package github provides a package source backed by GitHub repositories.
// Versions come from the repository's tags and branches; contents come from
// the first asset of a matching release, or the tag's source archive.
package github

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/git-pkgs/ghsource/fetch"
	"github.com/git-pkgs/ghsource/internal/archive"
	"github.com/git-pkgs/ghsource/internal/core"
	"github.com/git-pkgs/ghsource/internal/refs"
)

const (
	// DefaultRemote is the endpoint advertised by Configure.
	DefaultRemote = "https://github.jspm.io"
	sourceName    = "github"
)

func init() {
	core.Register(sourceName, func(cfg core.Config, client *core.Client) core.Source {
		return New(cfg, client)
	})
}

// ProgressFunc returns a writer that observes the bytes of a download, or
// nil to skip reporting. size is -1 when the length is unknown.
type ProgressFunc func(description string, size int64) io.Writer

// Source resolves and downloads packages hosted on GitHub.
type Source struct {
	cfg      core.Config
	client   *core.Client
	probe    *core.Client
	urls     *core.BaseURLs
	lister   refs.Lister
	fetcher  fetch.FetcherInterface
	resolver *fetch.Resolver
	extract  archive.Options
	progress ProgressFunc
	retries  int
	logger   zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Source) {
		s.logger = l
	}
}

// WithLister replaces the ref lister used by Lookup.
func WithLister(l refs.Lister) Option {
	return func(s *Source) {
		s.lister = l
	}
}

// WithFetcher replaces the artifact fetcher used by Download.
func WithFetcher(f fetch.FetcherInterface) Option {
	return func(s *Source) {
		s.fetcher = f
	}
}

// WithRunner replaces the runner that invokes unzip.
func WithRunner(r archive.Runner) Option {
	return func(s *Source) {
		s.extract.Runner = r
	}
}

// WithGOOS overrides the platform used to decide zip support.
func WithGOOS(goos string) Option {
	return func(s *Source) {
		s.extract.GOOS = goos
	}
}

// WithProgress installs a download progress hook.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Source) {
		s.progress = fn
	}
}

// WithRetries lets API calls and downloads retry rate-limited and 5xx
// responses up to n times. By default every failure is returned at once
// and retrying is left to the caller.
func WithRetries(n int) Option {
	return func(s *Source) {
		s.retries = n
	}
}

// New creates a GitHub source. A nil client uses core.DefaultClient.
func New(cfg core.Config, client *core.Client, opts ...Option) *Source {
	if client == nil {
		client = core.DefaultClient()
	}
	if cfg.UserAgent != "" {
		client = client.WithUserAgent(cfg.UserAgent)
	}
	if cfg.HasCredentials() {
		client = client.WithBasicAuth(cfg.Username, cfg.Password)
	}

	s := &Source{
		cfg:  cfg,
		urls: core.NewBaseURLs(cfg.APIURL, cfg.RemoteURL, cfg.RawURL),
		extract: archive.Options{
			TmpDir:  cfg.TmpDir,
			Timeout: cfg.Timeout,
		},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.client = client.WithRetries(s.retries)
	s.probe = s.client.WithoutRedirects()

	if s.lister == nil {
		lister := refs.NewGoGitLister(cfg.Username, cfg.Password)
		lister.Timeout = cfg.Timeout
		s.lister = lister
	}
	if s.fetcher == nil {
		s.fetcher = fetch.NewCircuitBreakerFetcher(fetch.NewFetcher(s.fetcherOptions()...))
	}
	s.resolver = fetch.NewResolver(s, s.urls)
	return s
}

func (s *Source) fetcherOptions() []fetch.Option {
	opts := []fetch.Option{
		fetch.WithUserAgent(s.client.UserAgent),
		fetch.WithMaxRetries(s.retries),
	}
	if s.cfg.HasCredentials() {
		opts = append(opts, fetch.WithBasicAuth(s.cfg.Username, s.cfg.Password))
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, fetch.WithTimeout(s.cfg.Timeout))
	}
	return opts
}

func (s *Source) Name() string {
	return sourceName
}

func (s *Source) URLs() core.URLBuilder {
	return s.urls
}

// Configure stamps the source identity onto ep.
func (s *Source) Configure(ep core.Endpoint) core.Endpoint {
	ep.Name = sourceName
	ep.Remote = DefaultRemote
	return ep
}
