package github

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/git-pkgs/ghsource/internal/core"
)

type releaseResponse struct {
	TagName string          `json:"tag_name"`
	Name    string          `json:"name"`
	Assets  []assetResponse `json:"assets"`
}

type assetResponse struct {
	Name               string `json:"name"`
	URL                string `json:"url"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// CheckReleases looks for a published release tagged version. Only the
// first asset of the first matching release is considered. It returns nil
// when there is no such release, the release has no assets, or the asset is
// not a tarball or zip.
func (s *Source) CheckReleases(ctx context.Context, repo core.Repository, version string) (*core.Release, error) {
	endpoint := s.urls.Releases(repo.String())
	body, err := s.client.GetBody(ctx, endpoint)
	if err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) {
			return nil, &core.TransferError{URL: endpoint, StatusCode: httpErr.StatusCode, Msg: "unable to list releases", Err: err}
		}
		return nil, err
	}

	var releases []releaseResponse
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, &core.ProtocolError{Repository: repo.String(), Version: version, Msg: "malformed API response", Err: err}
	}

	log := s.logger.With().Str("repository", repo.String()).Str("version", version).Logger()
	for _, rel := range releases {
		if strings.TrimSpace(rel.TagName) != version {
			continue
		}
		if len(rel.Assets) == 0 {
			log.Debug().Msg("release has no assets")
			return nil, nil
		}

		asset := rel.Assets[0]
		kind := core.ArchiveKindFromName(asset.Name)
		if kind == core.ArchiveUnknown {
			log.Debug().Str("asset", asset.Name).Msg("release asset is not an archive")
			return nil, nil
		}

		log.Debug().Str("asset", asset.Name).Str("kind", string(kind)).Msg("release asset matched")
		return &core.Release{
			Tag:      rel.TagName,
			Name:     asset.Name,
			AssetURL: asset.URL,
			Kind:     kind,
			Size:     asset.Size,
		}, nil
	}
	return nil, nil
}
