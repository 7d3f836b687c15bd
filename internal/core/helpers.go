package core

import (
	"context"
	"sync"
)

const defaultConcurrency = 15

// BulkLookup resolves multiple repositories in parallel.
// Individual lookup errors are silently ignored - those repositories are omitted from results.
// Returns a map of "owner/name" to LookupResult.
func BulkLookup(ctx context.Context, src Source, repos []Repository) map[string]LookupResult {
	return BulkLookupWithConcurrency(ctx, src, repos, defaultConcurrency)
}

// BulkLookupWithConcurrency resolves repositories with a custom concurrency limit.
func BulkLookupWithConcurrency(ctx context.Context, src Source, repos []Repository, concurrency int) map[string]LookupResult {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	results := make(map[string]LookupResult)
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, repo := range repos {
		wg.Add(1)
		go func(r Repository) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			res, err := src.Lookup(ctx, r)
			if err == nil {
				mu.Lock()
				results[r.String()] = res
				mu.Unlock()
			}
		}(repo)
	}

	wg.Wait()
	return results
}

// BulkPackageConfigs fetches package descriptors for already resolved
// repositories in parallel. hashes maps "owner/name" to a content hash.
// Failed fetches are omitted from results.
func BulkPackageConfigs(ctx context.Context, src Source, hashes map[string]string) map[string]PackageConfig {
	results := make(map[string]PackageConfig)
	var mu sync.Mutex
	sem := make(chan struct{}, defaultConcurrency)
	var wg sync.WaitGroup

	for name, hash := range hashes {
		repo, err := ParseRepository(name)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func(r Repository, h string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			cfg, err := src.GetPackageConfig(ctx, r, "", h)
			if err == nil {
				mu.Lock()
				results[r.String()] = cfg
				mu.Unlock()
			}
		}(repo, hash)
	}

	wg.Wait()
	return results
}
