package github

import (
	"context"

	"github.com/git-pkgs/ghsource/fetch"
	"github.com/git-pkgs/ghsource/internal/core"
)

// Resolve reports where Download would fetch version from without
// transferring the archive.
func (s *Source) Resolve(ctx context.Context, repo core.Repository, version string) (*fetch.ArtifactInfo, error) {
	return s.resolver.Resolve(ctx, repo, version)
}

// Stat issues a HEAD request for a resolved artifact. size is -1 when the
// server does not declare a length.
func (s *Source) Stat(ctx context.Context, info *fetch.ArtifactInfo) (size int64, contentType string, err error) {
	return s.fetcher.Head(ctx, info.URL)
}
