// Package folderops manages vault folders. Folders are plain directories:
// creating one is idempotent, deleting one is destructive and leaves any
// inbound wikilinks dangling, and moving one relocates the whole subtree.
// Link identifiers derive from basenames, which a folder move preserves, so
// moving a folder never requires reference repair.
package folderops

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/vault"
)

// Contents is the direct (non-recursive) listing of one folder.
type Contents struct {
	Path    string           `json:"path"`
	Folders []string         `json:"folders"`
	Notes   []vault.NoteInfo `json:"notes"`
}

// Service performs folder operations against the vault.
type Service struct {
	store  vault.Provider
	view   index.View
	logger *slog.Logger
}

// NewService creates a folder operator.
func NewService(store vault.Provider, view index.View, logger *slog.Logger) *Service {
	return &Service{store: store, view: view, logger: logger}
}

// Create makes the folder at path, including intermediate folders. Creating
// an existing folder succeeds without effect.
func (s *Service) Create(_ context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("folderops: empty path: %w", apperr.ErrInvalidParameter)
	}
	return s.store.MkDir(path)
}

// Delete recursively removes the folder subtree and drops its documents from
// the view. Wikilinks pointing at the removed documents are left as-is.
func (s *Service) Delete(_ context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("folderops: empty path: %w", apperr.ErrInvalidParameter)
	}

	infos, err := s.store.List(path)
	if err != nil {
		return err
	}
	if err := s.store.RemoveDir(path); err != nil {
		return err
	}

	for _, info := range infos {
		if err := s.view.DeleteNote(info.Path); err != nil {
			s.logger.Warn("folderops: view cleanup failed",
				slog.String("path", info.Path),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Move relocates the subtree at src to dst and re-points the view rows.
// Every moved document keeps its basename and therefore its link
// identifier, so inbound wikilinks stay valid without rewriting.
func (s *Service) Move(_ context.Context, src, dst string) error {
	if strings.TrimSpace(src) == "" || strings.TrimSpace(dst) == "" {
		return fmt.Errorf("folderops: empty path: %w", apperr.ErrInvalidParameter)
	}
	if s.store.Exists(dst) {
		return fmt.Errorf("folderops: destination %s: %w", dst, apperr.ErrAlreadyExists)
	}

	infos, err := s.store.List(src)
	if err != nil {
		return err
	}

	if err := s.store.MoveDir(src, dst); err != nil {
		return err
	}

	srcPrefix := strings.TrimSuffix(src, "/") + "/"
	dstPrefix := strings.TrimSuffix(dst, "/") + "/"

	for _, info := range infos {
		oldPath := info.Path
		newPath := dstPrefix + strings.TrimPrefix(oldPath, srcPrefix)

		if err := s.view.DeleteNote(oldPath); err != nil {
			s.logger.Warn("folderops: view delete failed",
				slog.String("path", oldPath),
				slog.String("error", err.Error()))
		}
		data, err := s.store.Read(newPath)
		if err != nil {
			s.logger.Warn("folderops: read after move failed",
				slog.String("path", newPath),
				slog.String("error", err.Error()))
			continue
		}
		if err := index.IndexFile(s.view, newPath, data); err != nil {
			s.logger.Warn("folderops: view refresh failed",
				slog.String("path", newPath),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// Stats returns the recursive document and subfolder counts for path.
func (s *Service) Stats(_ context.Context, path string) (vault.FolderStats, error) {
	return s.store.Stats(path)
}

// List returns every folder under path, recursively, sorted.
func (s *Service) List(_ context.Context, path string) ([]string, error) {
	folders, err := s.store.Folders(path)
	if err != nil {
		return nil, err
	}
	sort.Strings(folders)
	return folders, nil
}

// ListContents returns the direct children of one folder: its immediate
// subfolders and the notes sitting directly inside it.
func (s *Service) ListContents(_ context.Context, path string) (*Contents, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")

	folders, err := s.store.Folders(path)
	if err != nil {
		return nil, err
	}
	infos, err := s.store.List(path)
	if err != nil {
		return nil, err
	}

	prefix := ""
	if path != "" {
		prefix = path + "/"
	}

	out := &Contents{Path: path, Folders: []string{}, Notes: []vault.NoteInfo{}}
	for _, f := range folders {
		if !strings.Contains(strings.TrimPrefix(f, prefix), "/") {
			out.Folders = append(out.Folders, f)
		}
	}
	for _, info := range infos {
		rest := strings.TrimPrefix(info.Path, prefix)
		if !strings.Contains(rest, "/") {
			out.Notes = append(out.Notes, info)
		}
	}
	sort.Strings(out.Folders)
	sort.Slice(out.Notes, func(i, j int) bool { return out.Notes[i].Path < out.Notes[j].Path })
	return out, nil
}
