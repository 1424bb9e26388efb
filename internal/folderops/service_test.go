package folderops

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/vault"
)

func newTestService(t *testing.T, files map[string]string) (*Service, vault.Provider, index.View) {
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

	return NewService(store, db, logger), store, db
}

func TestCreateIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t, nil)

	if err := svc.Create(context.Background(), "projects/deep"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Create(context.Background(), "projects/deep"); err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !store.Exists("projects/deep") {
		t.Error("folder missing after create")
	}
}

func TestCreateEmptyPath(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	if err := svc.Create(context.Background(), "  "); !errors.Is(err, apperr.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestDeleteRemovesSubtreeAndViewRows(t *testing.T) {
	svc, store, view := newTestService(t, map[string]string{
		"old/a.md":     "---\ntitle: A\n---\nbody\n",
		"old/sub/b.md": "---\ntitle: B\n---\nbody\n",
		"keep.md":      "---\ntitle: Keep\n---\nSee [[a]].\n",
	})

	if err := svc.Delete(context.Background(), "old"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Exists("old") {
		t.Error("folder still exists")
	}
	if row, _ := view.GetNote("old/a.md"); row != nil {
		t.Error("view row survived folder delete")
	}

	// The dangling reference in keep.md is left untouched.
	data, err := store.Read("keep.md")
	if err != nil {
		t.Fatal(err)
	}
	if want := "See [[a]]."; !strings.Contains(string(data), want) {
		t.Errorf("keep.md rewritten: %s", data)
	}
}

func TestDeleteMissingFolder(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	if err := svc.Delete(context.Background(), "nope"); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestMoveRelocatesAndReindexes(t *testing.T) {
	svc, store, view := newTestService(t, map[string]string{
		"src/a.md":     "---\ntitle: A\n---\nbody\n",
		"src/sub/b.md": "---\ntitle: B\n---\nbody\n",
	})

	if err := svc.Move(context.Background(), "src", "dst"); err != nil {
		t.Fatalf("move: %v", err)
	}

	if store.Exists("src") {
		t.Error("source folder still exists")
	}
	if !store.Exists("dst/sub/b.md") {
		t.Error("moved file missing")
	}
	if row, _ := view.GetNote("src/a.md"); row != nil {
		t.Error("stale view row for old path")
	}
	if row, _ := view.GetNote("dst/a.md"); row == nil {
		t.Error("view row missing for new path")
	}
}

func TestMoveOntoExisting(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{
		"src/a.md": "body\n",
		"dst/b.md": "body\n",
	})

	if err := svc.Move(context.Background(), "src", "dst"); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestMoveKeepsLinksWhenBasenamesUnchanged(t *testing.T) {
	svc, store, _ := newTestService(t, map[string]string{
		"src/note.md": "---\ntitle: Note\n---\nbody\n",
		"ref.md":      "See [[note]].\n",
	})

	if err := svc.Move(context.Background(), "src", "dst"); err != nil {
		t.Fatalf("move: %v", err)
	}

	// Link identity is the basename, so a pure folder move rewrites nothing.
	data, err := store.Read("ref.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[[note]]") {
		t.Errorf("ref.md unexpectedly rewritten: %s", data)
	}
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{
		"f/a.md":     "x",
		"f/sub/b.md": "x",
	})

	stats, err := svc.Stats(context.Background(), "f")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.DocumentCount != 2 || stats.SubfolderCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestListAndContents(t *testing.T) {
	svc, _, _ := newTestService(t, map[string]string{
		"a/x.md":      "x",
		"a/b/y.md":    "x",
		"a/b/c/z.md":  "x",
		"top.md":      "x",
	})

	folders, err := svc.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"a", "a/b", "a/b/c"}
	if !reflect.DeepEqual(folders, want) {
		t.Errorf("folders = %v, want %v", folders, want)
	}

	contents, err := svc.ListContents(context.Background(), "a")
	if err != nil {
		t.Fatalf("contents: %v", err)
	}
	if !reflect.DeepEqual(contents.Folders, []string{"a/b"}) {
		t.Errorf("direct folders = %v", contents.Folders)
	}
	if len(contents.Notes) != 1 || contents.Notes[0].Path != "a/x.md" {
		t.Errorf("direct notes = %v", contents.Notes)
	}

	root, err := svc.ListContents(context.Background(), "")
	if err != nil {
		t.Fatalf("root contents: %v", err)
	}
	if !reflect.DeepEqual(root.Folders, []string{"a"}) {
		t.Errorf("root folders = %v", root.Folders)
	}
	if len(root.Notes) != 1 || root.Notes[0].Path != "top.md" {
		t.Errorf("root notes = %v", root.Notes)
	}
}

