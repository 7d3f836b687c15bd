package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/ghsource/internal/core"
	"github.com/git-pkgs/ghsource/internal/refs"
)

// errTerminal stops the lookup group once the metadata probe has decided
// the outcome.
var errTerminal = errors.New("lookup settled")

// Lookup resolves the tags and branches of repo. The repository metadata
// probe and the ref listing run concurrently. A redirect or a missing
// repository reported by the probe settles the lookup immediately and
// cancels the ref listing.
func (s *Source) Lookup(ctx context.Context, repo core.Repository) (core.LookupResult, error) {
	log := s.logger.With().Str("repository", repo.String()).Logger()
	log.Debug().Msg("lookup started")

	g, gctx := errgroup.WithContext(ctx)

	var (
		settled  core.LookupResult
		versions core.VersionMap
		missing  bool
		listErr  error
	)

	g.Go(func() error {
		res, terminal, err := s.probeRepository(gctx, repo)
		if err != nil {
			return err
		}
		if terminal {
			settled = res
			return errTerminal
		}
		return nil
	})

	g.Go(func() error {
		list, err := s.lister.List(gctx, s.urls.Git(repo.String()))
		switch {
		case errors.Is(err, refs.ErrRepositoryNotFound):
			missing = true
		case err != nil:
			listErr = err
		default:
			versions = refs.VersionMap(list)
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, errTerminal) {
		log.Debug().Stringer("result", settled.Kind).Msg("lookup settled by metadata probe")
		return settled, nil
	}
	if err != nil {
		return core.LookupResult{}, err
	}
	if listErr != nil {
		return core.LookupResult{}, fmt.Errorf("%s: %w", repo, listErr)
	}
	if missing {
		log.Debug().Msg("ref listing reported not found for an existing repository")
	}

	log.Debug().Int("versions", len(versions)).Msg("lookup finished")
	return core.Found(versions), nil
}

// probeRepository requests the repository metadata without following
// redirects. terminal is true for a redirect or a missing repository.
func (s *Source) probeRepository(ctx context.Context, repo core.Repository) (res core.LookupResult, terminal bool, err error) {
	endpoint := s.urls.Repository(repo.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return core.LookupResult{}, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.probe.Do(ctx, req)
	if err != nil {
		return core.LookupResult{}, false, fmt.Errorf("probing %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		return core.LookupResult{}, false, nil

	case http.StatusMovedPermanently:
		target, err := s.redirectTarget(ctx, repo, resp.Request.URL, resp.Header.Get("Location"))
		if err != nil {
			return core.LookupResult{}, false, err
		}
		return core.Redirected(target), true, nil

	case http.StatusNotFound:
		return core.NotFound(), true, nil

	default:
		return core.LookupResult{}, false, &core.TransferError{
			URL:        endpoint,
			StatusCode: resp.StatusCode,
			Msg:        "invalid status code",
		}
	}
}

// redirectTarget derives the new repository from a Location header by
// dropping the scheme and host, and the API base path when the location
// points at the API. API locations of the form /repos/{owner}/{name} lose
// their "repos" prefix. The API answers renames
// with /repositories/{id}, whose metadata carries the new full name.
func (s *Source) redirectTarget(ctx context.Context, repo core.Repository, base *url.URL, location string) (core.Repository, error) {
	if location == "" {
		return core.Repository{}, &core.ProtocolError{Repository: repo.String(), Msg: "redirect without location"}
	}
	u, err := url.Parse(location)
	if err != nil {
		return core.Repository{}, &core.ProtocolError{Repository: repo.String(), Msg: "invalid redirect location", Err: err}
	}
	if base != nil {
		u = base.ResolveReference(u)
	}

	path := u.Path
	if api, err := url.Parse(s.urls.APIURL); err == nil && api.Host == u.Host && api.Path != "" {
		path = strings.TrimPrefix(path, strings.TrimSuffix(api.Path, "/"))
	}

	segments := splitPath(path)
	if len(segments) > 0 && segments[0] == "repos" {
		segments = segments[1:]
	} else if len(segments) == 2 && segments[0] == "repositories" {
		return s.repositoryByID(ctx, repo, u.String())
	}

	if len(segments) < 2 {
		return core.Repository{}, &core.ProtocolError{Repository: repo.String(), Msg: fmt.Sprintf("redirect location %q names no repository", location)}
	}
	return core.Repository{Owner: segments[0], Name: segments[1]}, nil
}

func (s *Source) repositoryByID(ctx context.Context, repo core.Repository, endpoint string) (core.Repository, error) {
	var meta struct {
		FullName string `json:"full_name"`
	}
	if err := s.client.GetJSON(ctx, endpoint, &meta); err != nil {
		return core.Repository{}, fmt.Errorf("following redirect of %s: %w", repo, err)
	}
	target, err := core.ParseRepository(meta.FullName)
	if err != nil {
		return core.Repository{}, &core.ProtocolError{Repository: repo.String(), Msg: "malformed API response", Err: err}
	}
	return target, nil
}

func splitPath(p string) []string {
	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
