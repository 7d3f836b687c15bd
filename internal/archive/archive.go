// Package archive unpacks downloaded archives into a target directory.
package archive

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/git-pkgs/ghsource/internal/core"
)

// Extractor unpacks an archive stream into targetDir.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, targetDir string) error
}

// Options configures the extractors returned by For.
type Options struct {
	// TmpDir holds intermediate files for formats that cannot be streamed.
	TmpDir string
	// Runner executes external tools. Defaults to ExecRunner.
	Runner Runner
	// GOOS overrides runtime.GOOS.
	GOOS string
	// Timeout bounds each external tool invocation.
	Timeout time.Duration
}

// For returns the extractor for kind. Kinds the current platform cannot
// unpack yield a *core.PlatformUnsupportedError, so callers can refuse
// before downloading anything.
func For(kind core.ArchiveKind, opts Options) (Extractor, error) {
	switch kind {
	case core.ArchiveTar:
		return &Tar{Strip: 1}, nil
	case core.ArchiveZip:
		runner := opts.Runner
		if runner == nil {
			runner = &ExecRunner{Dir: opts.TmpDir, Timeout: opts.Timeout}
		}
		goos := opts.GOOS
		if goos == "" {
			goos = runtime.GOOS
		}
		z := &Zip{TmpDir: opts.TmpDir, Runner: runner, GOOS: goos}
		if err := z.supported(); err != nil {
			return nil, err
		}
		return z, nil
	default:
		return nil, fmt.Errorf("unsupported archive kind %q", kind)
	}
}
