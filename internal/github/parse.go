package github

import (
	"fmt"
	"strings"

	"github.com/git-pkgs/ghsource/internal/core"
)

// Parse splits "owner/repo/sub/path" into the repository "owner/repo" and
// the subpath "sub/path".
func (s *Source) Parse(qualified string) (core.ParsedName, error) {
	parts := strings.Split(qualified, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return core.ParsedName{}, fmt.Errorf("invalid package name %q: must be owner/repo[/path]", qualified)
	}
	return core.ParsedName{
		Package: parts[0] + "/" + parts[1],
		Path:    strings.Join(parts[2:], "/"),
	}, nil
}
