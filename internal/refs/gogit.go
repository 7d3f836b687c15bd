package refs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// GoGitLister lists refs over the smart protocol with go-git, without a
// local git installation.
type GoGitLister struct {
	Username string
	Password string
	// Timeout bounds each listing. Zero means no limit beyond ctx.
	Timeout time.Duration
}

// NewGoGitLister returns a lister authenticating with the given basic
// credentials. An empty username lists anonymously.
func NewGoGitLister(username, password string) *GoGitLister {
	return &GoGitLister{Username: username, Password: password}
}

func (l *GoGitLister) List(ctx context.Context, url string) ([]Ref, error) {
	remote := git.NewRemote(memory.NewStorage(), &config.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	opts := &git.ListOptions{PeelingOption: git.AppendPeeled}
	if l.Username != "" {
		opts.Auth = &githttp.BasicAuth{Username: l.Username, Password: l.Password}
	}

	ctx, cancel := boundedContext(ctx, l.Timeout)
	defer cancel()

	advertised, err := remote.ListContext(ctx, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("listing refs of %s: %w", url, ctx.Err())
		}
		return nil, l.mapError(url, err)
	}
	return fromReferences(advertised), nil
}

// mapError translates transport failures. An anonymous request for a
// private or missing repository is answered with an authentication
// challenge, which is treated the same as not found.
func (l *GoGitLister) mapError(url string, err error) error {
	switch {
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return nil
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return ErrRepositoryNotFound
	case errors.Is(err, transport.ErrAuthenticationRequired) && l.Username == "":
		return ErrRepositoryNotFound
	default:
		return fmt.Errorf("listing refs of %s: %w", url, err)
	}
}

func fromReferences(advertised []*plumbing.Reference) []Ref {
	refs := make([]Ref, 0, len(advertised))
	for _, ref := range advertised {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		name := ref.Name().String()
		if !strings.HasPrefix(name, headsPrefix) && !strings.HasPrefix(name, tagsPrefix) {
			continue
		}
		refs = append(refs, Ref{Hash: ref.Hash().String(), Name: name})
	}
	return refs
}
