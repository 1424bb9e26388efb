// Package tagops applies tag mutations across many documents at once.
// The tag collection itself is derived state: it exists only as the union of
// per-document tag lists, with the aggregate served from the index view.
package tagops

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/note"
	"github.com/starford/othala/internal/vault"
)

// Result reports the outcome of a bulk tag mutation. AffectedPaths lists only
// the documents whose tag set actually changed; documents that already were
// in the desired state are skipped silently.
type Result struct {
	Tag           string   `json:"tag"`
	AffectedCount int      `json:"affected_count"`
	AffectedPaths []string `json:"affected_paths"`
}

// Service performs scoped tag mutations over the vault.
type Service struct {
	store  vault.Provider
	locks  *vault.Locker
	view   index.View
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a tag operator.
func NewService(store vault.Provider, locks *vault.Locker, view index.View, logger *slog.Logger) *Service {
	return &Service{store: store, locks: locks, view: view, logger: logger, now: time.Now}
}

// Add applies tag to every document in scope. Documents already carrying the
// tag are left untouched and excluded from the result.
func (s *Service) Add(ctx context.Context, tag string, scope []string) (*Result, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, fmt.Errorf("tagops: empty tag: %w", apperr.ErrInvalidParameter)
	}
	return s.apply(ctx, tag, scope, func(d *note.Document) bool {
		return d.AddTag(tag)
	})
}

// Remove strips tag from every document in scope. Documents without the tag
// are left untouched and excluded from the result.
func (s *Service) Remove(ctx context.Context, tag string, scope []string) (*Result, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, fmt.Errorf("tagops: empty tag: %w", apperr.ErrInvalidParameter)
	}
	return s.apply(ctx, tag, scope, func(d *note.Document) bool {
		return d.RemoveTag(tag)
	})
}

// Rename replaces oldTag with newTag across the whole collection. The new tag
// keeps the old tag's position in each document's list; documents already
// carrying newTag end up with one deduplicated entry.
func (s *Service) Rename(ctx context.Context, oldTag, newTag string) (*Result, error) {
	if strings.TrimSpace(oldTag) == "" || strings.TrimSpace(newTag) == "" {
		return nil, fmt.Errorf("tagops: empty tag: %w", apperr.ErrInvalidParameter)
	}
	res, err := s.apply(ctx, newTag, nil, func(d *note.Document) bool {
		return d.RenameTag(oldTag, newTag)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// List returns every tag in the collection with its document count.
func (s *Service) List(_ context.Context) ([]index.TagCount, error) {
	return s.view.ListTags()
}

// apply resolves scope, runs mutate on each document under its lock, and
// writes back only documents whose content changed. Single-document failures
// are collected; the operation as a whole fails only when nothing at all
// could be processed.
func (s *Service) apply(ctx context.Context, tag string, scope []string, mutate func(*note.Document) bool) (*Result, error) {
	paths, err := s.resolveScope(scope)
	if err != nil {
		return nil, err
	}

	var (
		affected  []string
		failed    []string
		processed int
	)

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed, err := s.mutateOne(path, mutate)
		if err != nil {
			s.logger.Warn("tagops: document failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			failed = append(failed, path)
			continue
		}
		processed++
		if changed {
			affected = append(affected, path)
		}
	}

	if processed == 0 && len(paths) > 0 {
		return nil, fmt.Errorf("tagops: no documents processed, %d failed (first: %s)", len(failed), failed[0])
	}

	sort.Strings(affected)
	return &Result{Tag: tag, AffectedCount: len(affected), AffectedPaths: affected}, nil
}

func (s *Service) mutateOne(path string, mutate func(*note.Document) bool) (bool, error) {
	unlock := s.locks.Lock(path)
	defer unlock()

	data, err := s.store.Read(path)
	if err != nil {
		return false, err
	}
	doc, err := note.Parse(data)
	if err != nil {
		return false, err
	}
	doc.Path = path

	if !mutate(doc) {
		return false, nil
	}

	doc.Touch(s.now())
	out, err := doc.Serialize()
	if err != nil {
		return false, err
	}
	if err := s.store.Write(path, out); err != nil {
		return false, err
	}
	if err := index.IndexFile(s.view, path, out); err != nil {
		s.logger.Warn("tagops: view refresh failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
	return true, nil
}

// resolveScope expands scope entries into concrete document paths. Entries
// containing glob metacharacters are matched against the full collection with
// doublestar; plain entries pass through as-is. An empty scope means every
// document in the vault.
func (s *Service) resolveScope(scope []string) ([]string, error) {
	infos, err := s.store.List("")
	if err != nil {
		return nil, err
	}

	if len(scope) == 0 {
		paths := make([]string, len(infos))
		for i, info := range infos {
			paths[i] = info.Path
		}
		sort.Strings(paths)
		return paths, nil
	}

	seen := make(map[string]struct{})
	var paths []string
	add := func(p string) {
		if _, ok := seen[p]; !ok {
			seen[p] = struct{}{}
			paths = append(paths, p)
		}
	}

	for _, entry := range scope {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.ContainsAny(entry, "*?[{") {
			add(entry)
			continue
		}
		if !doublestar.ValidatePattern(entry) {
			return nil, fmt.Errorf("tagops: bad scope pattern %q: %w", entry, apperr.ErrInvalidParameter)
		}
		for _, info := range infos {
			if ok, _ := doublestar.Match(entry, info.Path); ok {
				add(info.Path)
			}
		}
	}

	sort.Strings(paths)
	return paths, nil
}
