package github

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/git-pkgs/ghsource/internal/archive"
	"github.com/git-pkgs/ghsource/internal/core"
	"github.com/git-pkgs/ghsource/internal/dirs"
)

// Download unpacks version of repo into targetDir, replacing whatever it
// held. The first asset of a matching release is preferred; otherwise the
// source archive of the tag is used. On failure the contents of targetDir
// are unspecified.
func (s *Source) Download(ctx context.Context, repo core.Repository, version, hash, targetDir string) error {
	log := s.logger.With().Str("repository", repo.String()).Str("version", version).Logger()

	info, err := s.resolver.Resolve(ctx, repo, version)
	if err != nil {
		return err
	}

	extractor, err := archive.For(info.Kind, s.extract)
	var platErr *core.PlatformUnsupportedError
	if errors.As(err, &platErr) {
		return err
	}
	if err != nil {
		return &core.ProtocolError{Repository: repo.String(), Version: version, Msg: "release found, but no archive present", Err: err}
	}

	log.Debug().Str("source", info.Source).Str("url", info.URL).Msg("downloading")
	artifact, err := s.fetcher.Fetch(ctx, info)
	if err != nil {
		return err
	}
	defer func() { _ = artifact.Body.Close() }()

	var body io.Reader = artifact.Body
	if s.progress != nil {
		if w := s.progress(fmt.Sprintf("%s@%s", repo, version), artifact.Size); w != nil {
			body = io.TeeReader(body, w)
		}
	}

	if err := dirs.Prepare(targetDir); err != nil {
		return err
	}
	if err := extractor.Extract(ctx, body, targetDir); err != nil {
		return fmt.Errorf("extracting %s: %w", info.Filename, err)
	}
	// Trailing padding after the archive end marker.
	_, _ = io.Copy(io.Discard, body)

	log.Debug().Str("target", targetDir).Msg("download extracted")
	return nil
}
