package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Source is the interface implemented by every package source.
type Source interface {
	// Name returns the registry name of this source (e.g., "github").
	Name() string

	// Configure enriches an endpoint description with this source's
	// identity and default remote. It has no side effects.
	Configure(ep Endpoint) Endpoint

	// Parse splits "owner/repo/sub/path" into the repository and subpath.
	Parse(qualified string) (ParsedName, error)

	// Lookup resolves the versions of a repository, or reports that it
	// moved or does not exist.
	Lookup(ctx context.Context, repo Repository) (LookupResult, error)

	// GetPackageConfig fetches the package descriptor at hash. A missing
	// descriptor yields an empty config.
	GetPackageConfig(ctx context.Context, repo Repository, version, hash string) (PackageConfig, error)

	// Download unpacks version of repo into targetDir.
	Download(ctx context.Context, repo Repository, version, hash, targetDir string) error

	// URLs returns the URL builder for this source.
	URLs() URLBuilder
}

// Factory creates a source for a given configuration.
type Factory func(cfg Config, client *Client) Source

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register adds a source factory to the global registry.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[name] = factory
}

// New creates a new source by name. If client is nil, DefaultClient() is used.
func New(name string, cfg Config, client *Client) (Source, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source: %s", name)
	}

	if client == nil {
		client = DefaultClient()
	}

	return factory(cfg, client), nil
}

// SupportedSources returns all registered source names, sorted.
func SupportedSources() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
