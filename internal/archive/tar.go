package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/git-pkgs/ghsource/internal/core"
)

// Tar extracts gzip-compressed tarballs, dropping the first Strip path
// segments of every entry.
type Tar struct {
	Strip int
}

// Extract unpacks r into targetDir. Every write goes through an os.Root
// opened on targetDir, so entries cannot land outside it even through
// symlinks created by earlier entries.
func (t *Tar) Extract(ctx context.Context, r io.Reader, targetDir string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("gzip reader failed: %w", err)
	}
	defer func() { _ = gzr.Close() }()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return &core.IOError{Op: "mkdir", Path: targetDir, Err: err}
	}
	realDir, err := filepath.EvalSymlinks(targetDir)
	if err != nil {
		return &core.IOError{Op: "resolve", Path: targetDir, Err: err}
	}
	root, err := os.OpenRoot(realDir)
	if err != nil {
		return &core.IOError{Op: "open", Path: targetDir, Err: err}
	}
	defer func() { _ = root.Close() }()

	x := &tarWriter{root: root, dir: realDir, strip: t.Strip}
	tr := tar.NewReader(gzr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar read failed: %w", err)
		}

		rel, ok := stripPath(header.Name, t.Strip)
		if !ok {
			continue
		}
		if _, ok := within(realDir, rel); !ok {
			continue
		}

		if err := x.write(tr, header, filepath.FromSlash(rel)); err != nil {
			return err
		}
	}
}

// tarWriter materializes entries relative to root.
type tarWriter struct {
	root  *os.Root
	dir   string
	strip int
}

func (x *tarWriter) write(tr *tar.Reader, header *tar.Header, name string) error {
	switch header.Typeflag {
	case tar.TypeDir:
		if err := x.root.MkdirAll(name, 0o755); err != nil {
			return &core.IOError{Op: "mkdir", Path: name, Err: err}
		}

	case tar.TypeReg:
		if err := x.mkdirParent(name); err != nil {
			return err
		}
		mode := header.FileInfo().Mode().Perm() | 0o600
		file, err := x.root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return &core.IOError{Op: "create", Path: name, Err: err}
		}
		if _, err := io.Copy(file, tr); err != nil {
			_ = file.Close()
			return fmt.Errorf("copy failed: %w", err)
		}
		if err := file.Close(); err != nil {
			return &core.IOError{Op: "close", Path: name, Err: err}
		}

	case tar.TypeSymlink:
		if filepath.IsAbs(header.Linkname) {
			return nil
		}
		if err := x.mkdirParent(name); err != nil {
			return err
		}
		// Resolve the link against the real location of its parent, which
		// may itself be reached through links from earlier entries.
		parent, err := filepath.EvalSymlinks(filepath.Join(x.dir, filepath.Dir(name)))
		if err != nil {
			return &core.IOError{Op: "resolve", Path: name, Err: err}
		}
		resolved := filepath.Join(parent, filepath.FromSlash(header.Linkname))
		if _, ok := within(x.dir, mustRel(x.dir, resolved)); !ok {
			return nil
		}
		_ = x.root.Remove(name)
		if err := x.root.Symlink(header.Linkname, name); err != nil {
			return &core.IOError{Op: "symlink", Path: name, Err: err}
		}
		// Targets such as "d/.." with d pointing at the root only escape
		// once resolved.
		if dest, err := filepath.EvalSymlinks(filepath.Join(x.dir, name)); err == nil {
			if _, ok := within(x.dir, mustRel(x.dir, dest)); !ok {
				_ = x.root.Remove(name)
			}
		}

	case tar.TypeLink:
		rel, ok := stripPath(header.Linkname, x.strip)
		if !ok {
			return nil
		}
		if _, ok := within(x.dir, rel); !ok {
			return nil
		}
		if err := x.mkdirParent(name); err != nil {
			return err
		}
		_ = x.root.Remove(name)
		if err := x.root.Link(filepath.FromSlash(rel), name); err != nil {
			return &core.IOError{Op: "link", Path: name, Err: err}
		}
	}
	return nil
}

func (x *tarWriter) mkdirParent(name string) error {
	dir := filepath.Dir(name)
	if dir == "." {
		return nil
	}
	if err := x.root.MkdirAll(dir, 0o755); err != nil {
		return &core.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// stripPath drops the first n segments of an archive path. It reports false
// when nothing is left.
func stripPath(name string, n int) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	parts := strings.Split(name, "/")
	if len(parts) <= n {
		return "", false
	}
	rel := path.Clean(strings.Join(parts[n:], "/"))
	if rel == "." || rel == "" {
		return "", false
	}
	return rel, true
}

// within joins rel onto dir and reports whether the result stays inside dir.
func within(dir, rel string) (string, bool) {
	target := filepath.Join(dir, filepath.FromSlash(rel))
	r, err := filepath.Rel(dir, target)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", false
	}
	return target, true
}

func mustRel(dir, target string) string {
	r, err := filepath.Rel(dir, target)
	if err != nil {
		return ".."
	}
	return filepath.ToSlash(r)
}
