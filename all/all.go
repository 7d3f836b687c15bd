// Package all imports all supported source implementations.
//
// Import this package for its side effects to register every source:
//
//	import (
//		"github.com/git-pkgs/ghsource"
//		_ "github.com/git-pkgs/ghsource/all"
//	)
//
//	// Now all sources are available
//	sources := ghsource.SupportedSources()
//	// ["github"]
package all

import (
	_ "github.com/git-pkgs/ghsource/internal/github"
)
