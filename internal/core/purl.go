package core

import (
	"fmt"

	"github.com/git-pkgs/purl"
)

// RepositoryFromPURL parses a pkg:github PURL into the repository and the
// optional version it names.
func RepositoryFromPURL(s string) (Repository, string, error) {
	p, err := purl.Parse(s)
	if err != nil {
		return Repository{}, "", err
	}
	if p.Type != "github" {
		return Repository{}, "", fmt.Errorf("unsupported PURL type %q: %s", p.Type, s)
	}
	if p.Namespace == "" || p.Name == "" {
		return Repository{}, "", fmt.Errorf("PURL has no owner/name: %s", s)
	}
	return Repository{Owner: p.Namespace, Name: p.Name}, p.Version, nil
}

// NewFromPURL creates a source from a PURL and returns the parsed components.
func NewFromPURL(s string, cfg Config, client *Client) (Source, Repository, string, error) {
	repo, version, err := RepositoryFromPURL(s)
	if err != nil {
		return nil, Repository{}, "", err
	}
	src, err := New("github", cfg, client)
	if err != nil {
		return nil, Repository{}, "", err
	}
	return src, repo, version, nil
}
