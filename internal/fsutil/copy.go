// Package fsutil holds the filesystem copy primitives used while staging
// backup content.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile copies src to dest byte for byte, following symlinks and
// preserving the source mode. Intermediate destination directories are
// created as needed.
func CopyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() {
		_ = in.Close()
	}()

	stat, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, stat.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	return nil
}

// CopyTree copies the directory at src into dest recursively, merging into
// any pre-existing destination subtree. Symlinked files are followed and
// copied as regular files.
func CopyTree(src, dest string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("compare paths: %w", err)
		}
		target := filepath.Join(dest, rel)

		if info.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil {
				return fmt.Errorf("resolve symlink %s: %w", path, err)
			}
			st, err := os.Stat(resolved)
			if err != nil {
				return fmt.Errorf("stat %s: %w", resolved, err)
			}
			if st.IsDir() {
				return CopyTree(resolved, target)
			}
			return CopyFile(resolved, target)
		}
		return CopyFile(path, target)
	})
}

// MakeExecutable adds the owner execute bit to an existing file.
func MakeExecutable(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.Chmod(path, stat.Mode()|0o100); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}
