package github

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/git-pkgs/ghsource/internal/core"
)

const packageFile = "package.json"

// GetPackageConfig fetches package.json at hash. A repository without one
// yields an empty config.
func (s *Source) GetPackageConfig(ctx context.Context, repo core.Repository, version, hash string) (core.PackageConfig, error) {
	endpoint := s.urls.Raw(repo.String(), hash, packageFile)
	body, err := s.client.GetBody(ctx, endpoint)
	if err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.IsNotFound() {
				return core.PackageConfig{}, nil
			}
			return nil, &core.TransferError{URL: endpoint, StatusCode: httpErr.StatusCode, Msg: "unable to check repo package.json", Err: err}
		}
		return nil, err
	}

	var cfg core.PackageConfig
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, &core.ProtocolError{Repository: repo.String(), Version: version, Msg: "error parsing package.json", Err: err}
	}
	if cfg == nil {
		cfg = core.PackageConfig{}
	}
	return cfg, nil
}
