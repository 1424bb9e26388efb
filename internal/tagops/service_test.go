package tagops

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/note"
	"github.com/starford/othala/internal/vault"
)

func newTestService(t *testing.T, files map[string]string) (*Service, vault.Provider) {
	t.Helper()

	dir := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	store, err := vault.NewFS(dir)
	if err != nil {
		t.Fatalf("new fs: %v", err)
	}

	db, err := index.Open(filepath.Join(t.TempDir(), "view.db"))
	if err != nil {
		t.Fatalf("open view: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	if err := index.Sync(db, store, logger); err != nil {
		t.Fatalf("sync: %v", err)
	}

	return NewService(store, vault.NewLocker(), db, logger), store
}

func docTags(t *testing.T, store vault.Provider, path string) []string {
	t.Helper()
	data, err := store.Read(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	doc, err := note.Parse(data)
	if err != nil {
		t.Fatalf("parse %s: %v", path, err)
	}
	return doc.Tags()
}

func TestAdd(t *testing.T) {
	svc, store := newTestService(t, map[string]string{
		"a.md": "---\ntitle: A\ntags: []\n---\nbody\n",
		"b.md": "---\ntitle: B\ntags:\n  - urgent\n---\nbody\n",
		"c.md": "---\ntitle: C\n---\nbody\n",
	})

	res, err := svc.Add(context.Background(), "urgent", []string{"a.md", "b.md"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.AffectedCount != 1 || !reflect.DeepEqual(res.AffectedPaths, []string{"a.md"}) {
		t.Errorf("result = %+v, want only a.md affected", res)
	}

	if got := docTags(t, store, "a.md"); !reflect.DeepEqual(got, []string{"urgent"}) {
		t.Errorf("a.md tags = %v", got)
	}
	// Out of scope, untouched.
	if got := docTags(t, store, "c.md"); len(got) != 0 {
		t.Errorf("c.md tags = %v, want none", got)
	}
}

func TestAddEmptyScopeMeansAll(t *testing.T) {
	svc, store := newTestService(t, map[string]string{
		"a.md":     "---\ntitle: A\n---\nbody\n",
		"sub/b.md": "---\ntitle: B\n---\nbody\n",
	})

	res, err := svc.Add(context.Background(), "archive", nil)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.AffectedCount != 2 {
		t.Errorf("affected = %d, want 2", res.AffectedCount)
	}
	for _, p := range []string{"a.md", "sub/b.md"} {
		if got := docTags(t, store, p); !reflect.DeepEqual(got, []string{"archive"}) {
			t.Errorf("%s tags = %v", p, got)
		}
	}
}

func TestAddGlobScope(t *testing.T) {
	svc, store := newTestService(t, map[string]string{
		"projects/x.md":       "---\ntitle: X\n---\nbody\n",
		"projects/deep/y.md":  "---\ntitle: Y\n---\nbody\n",
		"journal/2026-01.md":  "---\ntitle: Jan\n---\nbody\n",
	})

	res, err := svc.Add(context.Background(), "work", []string{"projects/**"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	want := []string{"projects/deep/y.md", "projects/x.md"}
	if !reflect.DeepEqual(res.AffectedPaths, want) {
		t.Errorf("affected = %v, want %v", res.AffectedPaths, want)
	}
	if got := docTags(t, store, "journal/2026-01.md"); len(got) != 0 {
		t.Errorf("journal tags = %v, want none", got)
	}
}

func TestAddBadPattern(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"a.md": "---\ntitle: A\n---\nbody\n",
	})

	_, err := svc.Add(context.Background(), "x", []string{"projects/[bad"})
	if !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestRemove(t *testing.T) {
	svc, store := newTestService(t, map[string]string{
		"a.md": "---\ntitle: A\ntags:\n  - old\n  - keep\n---\nbody\n",
		"b.md": "---\ntitle: B\ntags:\n  - keep\n---\nbody\n",
	})

	res, err := svc.Remove(context.Background(), "old", nil)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if res.AffectedCount != 1 || res.AffectedPaths[0] != "a.md" {
		t.Errorf("result = %+v", res)
	}
	if got := docTags(t, store, "a.md"); !reflect.DeepEqual(got, []string{"keep"}) {
		t.Errorf("a.md tags = %v", got)
	}
}

func TestRenameDeduplicates(t *testing.T) {
	svc, store := newTestService(t, map[string]string{
		"a.md": "---\ntitle: A\ntags:\n  - draft\n---\nbody\n",
		"b.md": "---\ntitle: B\ntags:\n  - draft\n  - final\n---\nbody\n",
		"c.md": "---\ntitle: C\ntags:\n  - other\n---\nbody\n",
	})

	res, err := svc.Rename(context.Background(), "draft", "final")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if res.AffectedCount != 2 {
		t.Errorf("affected = %d, want 2", res.AffectedCount)
	}
	if got := docTags(t, store, "a.md"); !reflect.DeepEqual(got, []string{"final"}) {
		t.Errorf("a.md tags = %v", got)
	}
	// Pre-existing target tag collapses to one entry.
	if got := docTags(t, store, "b.md"); !reflect.DeepEqual(got, []string{"final"}) {
		t.Errorf("b.md tags = %v", got)
	}
	if got := docTags(t, store, "c.md"); !reflect.DeepEqual(got, []string{"other"}) {
		t.Errorf("c.md tags = %v", got)
	}
}

func TestEmptyTagRejected(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"a.md": "---\ntitle: A\n---\nbody\n",
	})

	if _, err := svc.Add(context.Background(), "  ", nil); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("add: err = %v, want ErrInvalidParameter", err)
	}
	if _, err := svc.Rename(context.Background(), "x", ""); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("rename: err = %v, want ErrInvalidParameter", err)
	}
}

func TestAllDocumentsFailed(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"a.md": "---\ntitle: A\n---\nbody\n",
	})

	// Explicit scope naming only a missing document.
	_, err := svc.Add(context.Background(), "x", []string{"missing.md"})
	if err == nil {
		t.Fatal("expected error when every scoped document fails")
	}
}

func TestPartialFailureStillSucceeds(t *testing.T) {
	svc, store := newTestService(t, map[string]string{
		"a.md": "---\ntitle: A\n---\nbody\n",
	})

	res, err := svc.Add(context.Background(), "x", []string{"a.md", "missing.md"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.AffectedCount != 1 || res.AffectedPaths[0] != "a.md" {
		t.Errorf("result = %+v", res)
	}
	if got := docTags(t, store, "a.md"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Errorf("a.md tags = %v", got)
	}
}

func TestViewRefreshedAfterMutation(t *testing.T) {
	svc, _ := newTestService(t, map[string]string{
		"a.md": "---\ntitle: A\n---\nbody\n",
	})

	if _, err := svc.Add(context.Background(), "fresh", nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	counts, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, tc := range counts {
		if tc.Tag == "fresh" && tc.Count == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("tag aggregate missing fresh tag: %v", counts)
	}
}
