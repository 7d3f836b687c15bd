// Package dirs stages target directories for archive extraction.
package dirs

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/git-pkgs/ghsource/internal/core"
)

// Clear removes dir and everything below it. A missing dir is not an error.
func Clear(dir string) error {
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return &core.IOError{Op: "clear", Path: dir, Err: err}
	}
	return nil
}

// Prepare clears dir and recreates it, including missing parents.
// On success dir exists and is empty.
func Prepare(dir string) error {
	if err := Clear(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &core.IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// DetectStripRoot returns the single child of dir when that child is a
// directory, so a wrapper directory like "repo-abc123/" can be collapsed.
// Otherwise dir is returned unchanged.
func DetectStripRoot(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", &core.IOError{Op: "readdir", Path: dir, Err: err}
	}
	if len(entries) != 1 {
		return dir, nil
	}

	inner := filepath.Join(dir, entries[0].Name())
	info, err := os.Stat(inner)
	if err != nil {
		return "", &core.IOError{Op: "stat", Path: inner, Err: err}
	}
	if info.IsDir() {
		return inner, nil
	}
	return dir, nil
}

// MakeWritable adds owner write permission to everything under dir.
func MakeWritable(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Mode().Perm()&0o200 != 0 {
			return nil
		}
		return os.Chmod(path, info.Mode().Perm()|0o200)
	})
	if err != nil {
		return &core.IOError{Op: "chmod", Path: dir, Err: err}
	}
	return nil
}

// Move renames src onto dst, replacing whatever dst held.
func Move(src, dst string) error {
	if err := Clear(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &core.IOError{Op: "mkdir", Path: filepath.Dir(dst), Err: err}
	}
	if err := os.Rename(src, dst); err != nil {
		return &core.IOError{Op: "rename", Path: src, Err: err}
	}
	return nil
}
