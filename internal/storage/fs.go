package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/vowpost/internal/apperr"
	"github.com/starford/vowpost/internal/checksum"
	"github.com/starford/vowpost/internal/models"
)

const tempPattern = ".vowpost-tmp-*"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault directory.
func (f *FS) Root() string {
	return f.root
}

// abs maps a slash-separated vault path to a file system path. Paths that are
// absolute or climb out of the vault are rejected.
func (f *FS) abs(rel string) (string, error) {
	if rel == "" || rel == "." {
		return f.root, nil
	}
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("storage: %w: %s escapes vault root", apperr.ErrInvalidPath, rel)
	}
	return filepath.Join(f.root, local), nil
}

func (f *FS) rel(abs string) string {
	rel, _ := filepath.Rel(f.root, abs)
	return filepath.ToSlash(rel)
}

// List walks dir (relative to root) and returns metadata for every post.
// Hidden directories are skipped.
func (f *FS) List(dir string) ([]models.DocumentMetadata, error) {
	base, err := f.abs(dir)
	if err != nil {
		return nil, err
	}
	var out []models.DocumentMetadata
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if p != base && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsDocument(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out = append(out, models.DocumentMetadata{
			Path:      f.rel(p),
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically replaces the file at path: temp file, fsync, rename.
// Writing the bytes the file already holds leaves it untouched, so watchers
// see no event.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.abs(path)
	if err != nil {
		return err
	}
	if current, err := os.ReadFile(abs); err == nil && bytes.Equal(current, content) {
		return nil
	}

	perm := fs.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		perm = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	return WriteFileAtomic(abs, content, perm)
}

// WriteFileAtomic replaces the file at path through a temp file in the same
// directory: write, fsync, chmod, rename. Readers see the old or the new
// content, never a truncated file.
func WriteFileAtomic(path string, content []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	committed = true
	return nil
}

// Delete removes a file and then any directories it leaves empty, up to the
// vault root.
func (f *FS) Delete(path string) error {
	abs, err := f.abs(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("storage: refusing to delete vault root")
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", path, err)
	}
	f.pruneEmpty(filepath.Dir(abs))
	return nil
}

// Move renames a file within the vault. It fails with fs.ErrExist when
// newPath is taken.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.abs(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.abs(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(absOld); err != nil {
		return fmt.Errorf("storage: move %s: %w", oldPath, err)
	}
	if _, err := os.Stat(absNew); err == nil {
		return fmt.Errorf("storage: move to %s: %w", newPath, fs.ErrExist)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: move to %s: %w", newPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("storage: move: %w", err)
	}
	f.pruneEmpty(filepath.Dir(absOld))
	return nil
}

func (f *FS) pruneEmpty(dir string) {
	for dir != f.root && strings.HasPrefix(dir, f.root+string(os.PathSeparator)) {
		// os.Remove fails on non-empty directories, which ends the climb.
		if os.Remove(dir) != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
