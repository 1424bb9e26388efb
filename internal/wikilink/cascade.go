package wikilink

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/vault"
)

// WriteHook is called after a cascade successfully rewrites one document,
// with the path and the new content. Used to keep the index view current.
type WriteHook func(path string, data []byte)

// Rewriter propagates an identifier rename across every document in the vault.
type Rewriter struct {
	store   vault.Provider
	locks   *vault.Locker
	logger  *slog.Logger
	onWrite WriteHook
	limit   int
}

// NewRewriter creates a Rewriter. limit bounds the number of documents
// processed concurrently; values < 1 mean sequential.
func NewRewriter(store vault.Provider, locks *vault.Locker, logger *slog.Logger, limit int, onWrite WriteHook) *Rewriter {
	if limit < 1 {
		limit = 1
	}
	return &Rewriter{store: store, locks: locks, logger: logger, onWrite: onWrite, limit: limit}
}

// Cascade rewrites every reference to oldID into newID across the whole
// collection and returns the number of documents changed. Documents are
// written back only when their content actually changed. Per-document I/O
// failures do not abort the cascade; they are collected and reported as an
// *apperr.CascadeError alongside the success count.
func (r *Rewriter) Cascade(ctx context.Context, oldID, newID string) (int, error) {
	if oldID == newID {
		return 0, nil
	}

	infos, err := r.store.List("")
	if err != nil {
		return 0, err
	}

	var (
		mu      sync.Mutex
		changed int
		failed  []string
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, info := range infos {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			ok, did := r.rewriteOne(info.Path, oldID, newID)
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				failed = append(failed, info.Path)
			} else if did {
				changed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return changed, err
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return changed, &apperr.CascadeError{Changed: changed, Failed: failed}
	}
	return changed, nil
}

// rewriteOne reads, rewrites, and conditionally writes back one document.
// ok is false on I/O failure; did reports whether the content changed.
func (r *Rewriter) rewriteOne(path, oldID, newID string) (ok, did bool) {
	unlock := r.locks.Lock(path)
	defer unlock()

	data, err := r.store.Read(path)
	if err != nil {
		r.logger.Warn("cascade: read failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return false, false
	}

	rewritten := Rewrite(string(data), oldID, newID)
	if bytes.Equal([]byte(rewritten), data) {
		return true, false
	}

	if err := r.store.Write(path, []byte(rewritten)); err != nil {
		r.logger.Warn("cascade: write failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return false, false
	}
	if r.onWrite != nil {
		r.onWrite(path, []byte(rewritten))
	}
	return true, true
}
