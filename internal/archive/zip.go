package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/git-pkgs/ghsource/internal/core"
	"github.com/git-pkgs/ghsource/internal/dirs"
)

// Zip extracts zip archives with the external unzip tool. The archive is
// spooled to a temporary file first because unzip needs random access.
type Zip struct {
	TmpDir string
	Runner Runner
	GOOS   string
}

func (z *Zip) Extract(ctx context.Context, r io.Reader, targetDir string) error {
	if err := z.supported(); err != nil {
		return err
	}

	if z.TmpDir != "" {
		if err := os.MkdirAll(z.TmpDir, 0o755); err != nil {
			return &core.IOError{Op: "mkdir", Path: z.TmpDir, Err: err}
		}
	}

	tmpFile, err := os.CreateTemp(z.TmpDir, "release-*.zip")
	if err != nil {
		return &core.IOError{Op: "create", Path: z.TmpDir, Err: err}
	}
	archivePath := tmpFile.Name()
	defer func() { _ = os.Remove(archivePath) }()

	if _, err := io.Copy(tmpFile, r); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("writing %s: %w", archivePath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return &core.IOError{Op: "close", Path: archivePath, Err: err}
	}

	tmpDir, err := os.MkdirTemp(z.TmpDir, "release-")
	if err != nil {
		return &core.IOError{Op: "mkdir", Path: z.TmpDir, Err: err}
	}
	// After a successful move tmpDir is either gone or an empty wrapper.
	defer func() { _ = os.RemoveAll(tmpDir) }()

	if err := z.Runner.Run(ctx, "unzip", "-o", "-q", archivePath, "-d", tmpDir); err != nil {
		return fmt.Errorf("unzip %s: %w", archivePath, err)
	}
	if err := dirs.MakeWritable(tmpDir); err != nil {
		return err
	}

	root, err := dirs.DetectStripRoot(tmpDir)
	if err != nil {
		return err
	}
	return dirs.Move(root, targetDir)
}

// supported reports a PlatformUnsupportedError on platforms without an
// unzip integration.
func (z *Zip) supported() error {
	if !strings.HasPrefix(z.GOOS, "windows") {
		return nil
	}
	return &core.PlatformUnsupportedError{
		Platform: z.GOOS,
		Feature:  "zip release extraction",
		Hint:     "no unzip integration is available; publish a .tar.gz release asset or remove the .zip asset to use the source archive",
	}
}
