// Package refs lists the tags and branches of a remote git repository.
package refs

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/git-pkgs/ghsource/internal/core"
)

// ErrRepositoryNotFound is returned by a Lister when the remote reports the
// repository does not exist or is not visible to the caller.
var ErrRepositoryNotFound = errors.New("repository not found")

const (
	headsPrefix  = "refs/heads/"
	tagsPrefix   = "refs/tags/"
	peeledSuffix = "^{}"
)

// boundedContext applies timeout to ctx. A zero timeout leaves ctx as is.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// Ref is one advertised reference.
type Ref struct {
	Hash string
	Name string
}

// Lister lists the refs/tags/* and refs/heads/* references of a remote.
type Lister interface {
	List(ctx context.Context, url string) ([]Ref, error)
}

// ParseLsRemote parses `git ls-remote` output: one "<hash>\t<name>" pair
// per line. Blank and malformed lines are skipped.
func ParseLsRemote(out string) []Ref {
	var refs []Ref
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		hash, name, ok := strings.Cut(line, "\t")
		if !ok || hash == "" || name == "" {
			continue
		}
		refs = append(refs, Ref{Hash: strings.TrimSpace(hash), Name: strings.TrimSpace(name)})
	}
	return refs
}

// VersionMap folds refs into a version map. Branch and tag names lose their
// refs/heads/ or refs/tags/ prefix. A peeled tag entry ("v1^{}") carries the
// commit an annotated tag points at and always replaces the tag object hash.
// Other refs and hashes that are not 40 hex characters are ignored.
func VersionMap(refs []Ref) core.VersionMap {
	versions := core.VersionMap{}
	peeled := map[string]bool{}

	for _, ref := range refs {
		if !isHash(ref.Hash) {
			continue
		}

		switch {
		case strings.HasPrefix(ref.Name, headsPrefix):
			label := strings.TrimPrefix(ref.Name, headsPrefix)
			if label == "" || peeled[label] {
				continue
			}
			versions[label] = ref.Hash

		case strings.HasPrefix(ref.Name, tagsPrefix):
			label := strings.TrimPrefix(ref.Name, tagsPrefix)
			if strings.HasSuffix(label, peeledSuffix) {
				label = strings.TrimSuffix(label, peeledSuffix)
				if label == "" {
					continue
				}
				versions[label] = ref.Hash
				peeled[label] = true
				continue
			}
			if label == "" || peeled[label] {
				continue
			}
			versions[label] = ref.Hash
		}
	}
	return versions
}

func isHash(s string) bool {
	if len(s) != 40 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
