// Package noteops implements single-document operations: create, read,
// update, delete, and the move/rename flow that keeps inbound wikilinks
// consistent after a document changes its name.
package noteops

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/note"
	"github.com/starford/othala/internal/vault"
	"github.com/starford/othala/internal/wikilink"
)

// TemplatesDir is the vault folder scanned for note templates.
const TemplatesDir = "templates"

// Detail is the full representation of a note returned by read-style calls.
type Detail struct {
	Path        string         `json:"path"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Checksum    string         `json:"checksum"`
	Tags        []string       `json:"tags"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Backlinks   []string       `json:"backlinks"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ListItem is a lightweight entry in a list response.
type ListItem struct {
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Checksum  string    `json:"checksum"`
	Tags      []string  `json:"tags"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateParams describes a note to create. Title is required; the filename is
// derived from it. Extra keys are carried into the frontmatter verbatim.
type CreateParams struct {
	Title    string
	Body     string
	Tags     []string
	Folder   string
	Template string
	Extra    map[string]any
}

// UpdateParams is a partial update: nil fields keep the value on disk.
type UpdateParams struct {
	Title   *string
	Body    *string
	Tags    []string
	Extra   map[string]any
	IfMatch string
}

// MoveResult reports a completed move/rename.
type MoveResult struct {
	Source       string `json:"source"`
	Dest         string `json:"dest"`
	LinksUpdated int    `json:"links_updated"`
}

// Service coordinates vault writes and view refreshes for single notes.
type Service struct {
	store    vault.Provider
	locks    *vault.Locker
	view     index.View
	rewriter *wikilink.Rewriter
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a note operator.
func NewService(store vault.Provider, locks *vault.Locker, view index.View, rewriter *wikilink.Rewriter, logger *slog.Logger) *Service {
	return &Service{store: store, locks: locks, view: view, rewriter: rewriter, logger: logger, now: time.Now}
}

// Create writes a new note. The filename is the slugified title, placed under
// p.Folder. When p.Template names a file in the templates folder its rendered
// content becomes the body; a missing template logs a warning and falls back
// to the literal body.
func (s *Service) Create(_ context.Context, p CreateParams) (*Detail, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("noteops: empty title: %w", apperr.ErrInvalidParameter)
	}

	path := slug.Make(p.Title) + ".md"
	if folder := strings.Trim(strings.TrimSpace(p.Folder), "/"); folder != "" {
		if err := s.store.MkDir(folder); err != nil {
			return nil, err
		}
		path = folder + "/" + path
	}

	unlock := s.locks.Lock(path)
	defer unlock()

	if s.store.Exists(path) {
		return nil, fmt.Errorf("noteops: %s: %w", path, apperr.ErrAlreadyExists)
	}

	body := p.Body
	if p.Template != "" {
		if rendered, err := s.renderTemplate(p.Template, p.Title); err != nil {
			s.logger.Warn("noteops: template unavailable, using literal body",
				slog.String("template", p.Template),
				slog.String("error", err.Error()))
		} else {
			body = rendered
		}
	}

	doc := &note.Document{Path: path, Frontmatter: note.Frontmatter{}, Body: body}
	doc.SetTitle(p.Title)
	if len(p.Tags) > 0 {
		doc.SetTags(p.Tags)
	}
	for k, v := range p.Extra {
		doc.Frontmatter[k] = v
	}
	doc.Stamp(s.now())

	out, err := doc.Serialize()
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, out); err != nil {
		return nil, err
	}
	s.refresh(path, out)
	return s.buildDetail(path, out)
}

// Read returns the full note at path.
func (s *Service) Read(_ context.Context, path string) (*Detail, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("noteops: %s: %w", path, apperr.ErrNoteNotFound)
		}
		return nil, err
	}
	return s.buildDetail(path, data)
}

// Update merges p over the document on disk. Omitted fields keep their disk
// value; the modified timestamp is bumped on every successful update.
func (s *Service) Update(_ context.Context, path string, p UpdateParams) (*Detail, error) {
	unlock := s.locks.Lock(path)
	defer unlock()

	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("noteops: %s: %w", path, apperr.ErrNoteNotFound)
		}
		return nil, err
	}
	if p.IfMatch != "" && p.IfMatch != vault.Checksum(data) {
		return nil, fmt.Errorf("noteops: %s: %w", path, apperr.ErrConflict)
	}

	doc, err := note.Parse(data)
	if err != nil {
		return nil, err
	}
	doc.Path = path

	if p.Title != nil {
		doc.SetTitle(*p.Title)
	}
	if p.Body != nil {
		doc.Body = *p.Body
	}
	if p.Tags != nil {
		doc.SetTags(p.Tags)
	}
	for k, v := range p.Extra {
		doc.Frontmatter[k] = v
	}
	doc.Touch(s.now())

	out, err := doc.Serialize()
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(path, out); err != nil {
		return nil, err
	}
	s.refresh(path, out)
	return s.buildDetail(path, out)
}

// Delete removes the note. Inbound wikilinks are deliberately left dangling.
func (s *Service) Delete(_ context.Context, path string) error {
	unlock := s.locks.Lock(path)
	defer unlock()

	if !s.store.Exists(path) {
		return fmt.Errorf("noteops: %s: %w", path, apperr.ErrNoteNotFound)
	}
	if err := s.store.Delete(path); err != nil {
		return err
	}
	if err := s.view.DeleteNote(path); err != nil {
		s.logger.Warn("noteops: view cleanup failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return nil
}

// MoveRename relocates or renames a note in two phases: the content is first
// written to a staging path and verified by readback, then renamed into place
// and the source removed. A verify failure cleans up the staging file and
// leaves the source untouched. When updateLinks is set and the rename changed
// the note's link identifier, every referencing document is rewritten.
func (s *Service) MoveRename(ctx context.Context, source, dest, newTitle string, updateLinks bool) (*MoveResult, error) {
	if source == dest {
		return nil, fmt.Errorf("noteops: source equals destination: %w", apperr.ErrInvalidParameter)
	}
	if !strings.HasSuffix(dest, ".md") {
		return nil, fmt.Errorf("noteops: destination must end in .md: %w", apperr.ErrInvalidParameter)
	}

	staging := dest + ".staging"
	unlock := s.locks.Lock(source, dest, staging)

	res, out, err := s.moveLocked(source, dest, staging, newTitle)
	unlock()
	if err != nil {
		return nil, err
	}

	s.refresh(dest, out)
	if err := s.view.DeleteNote(source); err != nil {
		s.logger.Warn("noteops: view cleanup failed",
			slog.String("path", source),
			slog.String("error", err.Error()))
	}

	// Cascade takes per-document locks itself, so ours must be released first.
	oldID, newID := wikilink.Identifier(source), wikilink.Identifier(dest)
	if updateLinks && oldID != newID && s.rewriter != nil {
		changed, err := s.rewriter.Cascade(ctx, oldID, newID)
		res.LinksUpdated = changed
		if err != nil {
			var cerr *apperr.CascadeError
			if errors.As(err, &cerr) {
				res.LinksUpdated = cerr.Changed
			}
			return res, err
		}
	}
	return res, nil
}

func (s *Service) moveLocked(source, dest, staging, newTitle string) (*MoveResult, []byte, error) {
	data, err := s.store.Read(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("noteops: %s: %w", source, apperr.ErrNoteNotFound)
		}
		return nil, nil, err
	}
	if s.store.Exists(dest) {
		return nil, nil, fmt.Errorf("noteops: %s: %w", dest, apperr.ErrAlreadyExists)
	}

	doc, err := note.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	doc.Path = dest
	if newTitle != "" {
		doc.SetTitle(newTitle)
	}
	doc.Touch(s.now())

	out, err := doc.Serialize()
	if err != nil {
		return nil, nil, err
	}

	// Phase one: stage next to the destination and verify the readback.
	if err := s.store.Write(staging, out); err != nil {
		return nil, nil, err
	}
	verify, err := s.store.Read(staging)
	if err != nil || string(verify) != string(out) {
		if rmErr := s.store.Delete(staging); rmErr != nil {
			s.logger.Warn("noteops: staging cleanup failed",
				slog.String("path", staging),
				slog.String("error", rmErr.Error()))
		}
		if err == nil {
			err = fmt.Errorf("noteops: staging verify mismatch for %s", dest)
		}
		return nil, nil, err
	}

	// Phase two: publish and drop the source.
	if err := s.store.Move(staging, dest); err != nil {
		if rmErr := s.store.Delete(staging); rmErr != nil {
			s.logger.Warn("noteops: staging cleanup failed",
				slog.String("path", staging),
				slog.String("error", rmErr.Error()))
		}
		return nil, nil, err
	}
	if err := s.store.Delete(source); err != nil {
		return nil, nil, err
	}

	return &MoveResult{Source: source, Dest: dest}, out, nil
}

// List returns paginated note rows from the view, optionally filtered by tag.
func (s *Service) List(_ context.Context, limit, offset int, tag string) ([]ListItem, int, error) {
	rows, total, err := s.view.ListNotes(limit, offset, tag)
	if err != nil {
		return nil, 0, err
	}
	items := make([]ListItem, len(rows))
	for i, r := range rows {
		items[i] = ListItem{
			Path:      r.Path,
			Title:     r.Title,
			Checksum:  r.Checksum,
			Tags:      nonNil(r.Tags),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the view.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.view.Search(query, limit)
}

// Backlinks returns the paths of all documents referencing the note at path.
func (s *Service) Backlinks(_ context.Context, path string) ([]string, error) {
	return s.view.Backlinks(wikilink.Identifier(path))
}

// Graph returns the full link graph from the view.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.view.Graph()
}

func (s *Service) renderTemplate(name, title string) (string, error) {
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	data, err := s.store.Read(TemplatesDir + "/" + name)
	if err != nil {
		return "", err
	}
	body := string(data)
	body = strings.ReplaceAll(body, "{{title}}", title)
	body = strings.ReplaceAll(body, "{{date}}", s.now().Format("2006-01-02"))
	return body, nil
}

func (s *Service) refresh(path string, data []byte) {
	if err := index.IndexFile(s.view, path, data); err != nil {
		s.logger.Warn("noteops: view refresh failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

func (s *Service) buildDetail(path string, data []byte) (*Detail, error) {
	doc, err := note.Parse(data)
	if err != nil {
		return nil, err
	}
	bl, err := s.view.Backlinks(wikilink.Identifier(path))
	if err != nil {
		return nil, err
	}
	return &Detail{
		Path:        path,
		Title:       doc.Title(),
		Content:     string(data),
		Checksum:    vault.Checksum(data),
		Tags:        nonNil(doc.Tags()),
		Frontmatter: doc.Frontmatter,
		Backlinks:   nonNil(bl),
		UpdatedAt:   s.now(),
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
