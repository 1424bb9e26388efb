package vault

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/othala/internal/apperr"
)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to the vault directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("vault: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute vault root.
func (f *FS) Root() string { return f.root }

// resolve maps a vault-relative path to an absolute one, rejecting anything
// that escapes the root (directory traversal, absolute input).
func (f *FS) resolve(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("vault: %w: absolute path %s", apperr.ErrPathEscape, rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("vault: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("vault: %w: %s", apperr.ErrPathEscape, rel)
	}
	return abs, nil
}

// List walks dir and returns metadata for every .md file under it.
func (f *FS) List(dir string) ([]NoteInfo, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []NoteInfo
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
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
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, NoteInfo{
			Path:      filepath.ToSlash(rel),
			Checksum:  Checksum(data),
			UpdatedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: list: %w", err)
	}
	return out, nil
}

// Read returns the raw bytes of a vault file.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("vault: read %s: %w", path, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file, fsync, rename.
func (f *FS) Write(path string, content []byte) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vault: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".othala-tmp-*")
	if err != nil {
		return fmt.Errorf("vault: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("vault: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("vault: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("vault: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("vault: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a file from the vault.
func (f *FS) Delete(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("vault: delete %s: %w", path, err)
	}
	return nil
}

// Move renames a file within the vault.
func (f *FS) Move(oldPath, newPath string) error {
	absOld, err := f.resolve(oldPath)
	if err != nil {
		return err
	}
	absNew, err := f.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return fmt.Errorf("vault: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return fmt.Errorf("vault: move: %w", err)
	}
	return nil
}

// Exists reports whether a file or folder exists at path.
func (f *FS) Exists(path string) bool {
	abs, err := f.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// MkDir creates the folder at path; creating an existing folder is a no-op.
func (f *FS) MkDir(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("vault: %w: %s: %v", apperr.ErrFolderCreate, path, err)
	}
	return nil
}

// RemoveDir recursively removes the folder subtree at path.
func (f *FS) RemoveDir(path string) error {
	abs, err := f.resolve(path)
	if err != nil {
		return err
	}
	if abs == f.root {
		return fmt.Errorf("vault: refusing to remove vault root")
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("vault: remove dir %s: %w", path, err)
	}
	if err := os.RemoveAll(abs); err != nil {
		return fmt.Errorf("vault: remove dir %s: %w", path, err)
	}
	return nil
}

// MoveDir relocates a folder subtree.
func (f *FS) MoveDir(src, dst string) error {
	absSrc, err := f.resolve(src)
	if err != nil {
		return err
	}
	absDst, err := f.resolve(dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(absDst), 0o755); err != nil {
		return fmt.Errorf("vault: %w: %s: %v", apperr.ErrFolderCreate, dst, err)
	}
	if err := os.Rename(absSrc, absDst); err != nil {
		return fmt.Errorf("vault: move dir: %w", err)
	}
	return nil
}

// Folders returns the vault-relative paths of all folders under dir.
func (f *FS) Folders(dir string) ([]string, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() || p == base {
			return nil
		}
		rel, _ := filepath.Rel(f.root, p)
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: folders: %w", err)
	}
	return out, nil
}

// Stats returns the recursive document/subfolder aggregate for dir.
// Unreadable subpaths are skipped rather than failing the whole walk.
func (f *FS) Stats(dir string) (FolderStats, error) {
	base, err := f.resolve(dir)
	if err != nil {
		return FolderStats{}, err
	}
	if _, err := os.Stat(base); err != nil {
		return FolderStats{}, fmt.Errorf("vault: stats %s: %w", dir, err)
	}
	var stats FolderStats
	_ = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fs.SkipDir
		}
		switch {
		case d.IsDir() && p != base:
			stats.SubfolderCount++
		case !d.IsDir() && strings.HasSuffix(d.Name(), ".md"):
			stats.DocumentCount++
		}
		return nil
	})
	return stats, nil
}

// Checksum returns the hex-encoded SHA-256 digest of data.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
