package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/folderops"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/noteops"
	"github.com/starford/othala/internal/pipeline"
	"github.com/starford/othala/internal/tagops"
	"github.com/starford/othala/internal/tools"
	"github.com/starford/othala/internal/vault"
	"github.com/starford/othala/internal/wikilink"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	store, err := vault.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db, err := index.Open(filepath.Join(t.TempDir(), "view.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	locks := vault.NewLocker()
	rewriter := wikilink.NewRewriter(store, locks, logger, 4, func(path string, data []byte) {
		_ = index.IndexFile(db, path, data)
	})

	notes := noteops.NewService(store, locks, db, rewriter, logger)
	folders := folderops.NewService(store, db, logger)
	tags := tagops.NewService(store, locks, db, logger)

	registry := tools.DefaultRegistry(tools.Deps{Notes: notes, Folders: folders, Tags: tags})
	classifier := pipeline.NewRuleClassifier(
		pipeline.Rule{
			Keywords:   []string{"archive everything"},
			Kind:       "bulk_tag",
			Tools:      []string{"add_tag"},
			Parameters: map[string]any{"tag": "archive"},
		},
	)
	engine := pipeline.NewEngine(classifier, registry, logger)

	h := NewHandler(notes, folders, tags, engine)
	return NewRouter(h, false, "", nil)
}

func doJSON(t *testing.T, router chi.Router, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestNoteCRUD(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{
		Title: "Hello World",
		Body:  "First note.\n",
		Tags:  []string{"greeting"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	created := decode[NoteDetail](t, rec)
	if created.Path != "hello-world.md" {
		t.Errorf("path = %s", created.Path)
	}

	rec = doJSON(t, router, http.MethodGet, "/notes/hello-world.md", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decode[NoteDetail](t, rec)
	if got.Title != "Hello World" || !strings.Contains(got.Content, "First note.") {
		t.Errorf("note = %+v", got)
	}

	newBody := "Updated body.\n"
	rec = doJSON(t, router, http.MethodPut, "/notes/hello-world.md", UpdateNoteRequest{Body: &newBody})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[NoteDetail](t, rec)
	if !strings.Contains(updated.Content, "Updated body.") {
		t.Errorf("body not updated: %s", updated.Content)
	}
	if updated.Title != "Hello World" {
		t.Errorf("title lost on partial update: %s", updated.Title)
	}

	rec = doJSON(t, router, http.MethodDelete, "/notes/hello-world.md", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodGet, "/notes/hello-world.md", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}

func TestCreateNoteDuplicate(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Once"})
	rec := doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Once"})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestUpdateChecksumConflict(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Guarded"})

	req := httptest.NewRequest(http.MethodPut, "/notes/guarded.md", bytes.NewBufferString(`{"body":"x"}`))
	req.Header.Set("If-Match", `"bogus"`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestMoveNoteEndpoint(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Old Name"})
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Pointer", Body: "See [[old-name]].\n"})

	rec := doJSON(t, router, http.MethodPost, "/notes/move", MoveNoteRequest{
		Source: "old-name.md",
		Dest:   "fresh.md",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[noteops.MoveResult](t, rec)
	if res.LinksUpdated != 1 {
		t.Errorf("links updated = %d", res.LinksUpdated)
	}

	rec = doJSON(t, router, http.MethodGet, "/notes/pointer.md", nil)
	got := decode[NoteDetail](t, rec)
	if !strings.Contains(got.Content, "[[fresh]]") {
		t.Errorf("link not rewritten: %s", got.Content)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Hub"})
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Spoke", Body: "To [[hub]].\n"})

	rec := doJSON(t, router, http.MethodGet, "/backlinks/hub.md", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decode[map[string][]string](t, rec)
	if len(out["backlinks"]) != 1 || out["backlinks"][0] != "spoke.md" {
		t.Errorf("backlinks = %v", out)
	}
}

func TestTagEndpoints(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "One"})
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Two"})

	rec := doJSON(t, router, http.MethodPost, "/tags/add", TagRequest{Tag: "inbox"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[tagops.Result](t, rec)
	if res.AffectedCount != 2 {
		t.Errorf("affected = %d", res.AffectedCount)
	}

	rec = doJSON(t, router, http.MethodPost, "/tags/rename", RenameTagRequest{OldTag: "inbox", NewTag: "archive"})
	if rec.Code != http.StatusOK {
		t.Fatalf("rename status = %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/tags", nil)
	listed := decode[map[string][]index.TagCount](t, rec)
	tags := listed["tags"]
	if len(tags) != 1 || tags[0].Tag != "archive" || tags[0].Count != 2 {
		t.Errorf("tags = %v", tags)
	}

	rec = doJSON(t, router, http.MethodPost, "/tags/remove", TagRequest{Tag: "archive", Scope: []string{"one.md"}})
	res = decode[tagops.Result](t, rec)
	if res.AffectedCount != 1 || res.AffectedPaths[0] != "one.md" {
		t.Errorf("remove result = %+v", res)
	}
}

func TestFolderEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/folders", FolderRequest{Path: "projects/alpha"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create folder status = %d", rec.Code)
	}

	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Inside", Folder: "projects"})

	rec = doJSON(t, router, http.MethodGet, "/folders/stats?path=projects", nil)
	stats := decode[vault.FolderStats](t, rec)
	if stats.DocumentCount != 1 || stats.SubfolderCount != 1 {
		t.Errorf("stats = %+v", stats)
	}

	rec = doJSON(t, router, http.MethodGet, "/folders/contents?path=projects", nil)
	contents := decode[folderops.Contents](t, rec)
	if len(contents.Folders) != 1 || len(contents.Notes) != 1 {
		t.Errorf("contents = %+v", contents)
	}

	rec = doJSON(t, router, http.MethodPost, "/folders/move", MoveFolderRequest{Source: "projects", Dest: "areas"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("move folder status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodDelete, "/folders/areas", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete folder status = %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Roadmap", Body: "Quarterly planning.\n"})
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Recipes", Body: "Soup.\n"})

	rec := doJSON(t, router, http.MethodGet, "/search?q=planning", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	out := decode[map[string][]index.SearchResult](t, rec)
	if len(out["results"]) != 1 || out["results"][0].Path != "roadmap.md" {
		t.Errorf("results = %v", out)
	}

	rec = doJSON(t, router, http.MethodGet, "/search", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing query status = %d", rec.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "A", Body: "See [[b]].\n"})
	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "B"})

	rec := doJSON(t, router, http.MethodGet, "/graph", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Nodes []index.GraphNode `json:"nodes"`
		Links []index.GraphLink `json:"links"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Nodes) != 2 || len(out.Links) != 1 {
		t.Errorf("graph = %+v", out)
	}
}

func TestTaskEndpoint(t *testing.T) {
	router := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/notes", CreateNoteRequest{Title: "Loose End"})

	rec := doJSON(t, router, http.MethodPost, "/tasks", TaskRequest{Input: "please archive everything"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[pipeline.TaskResult](t, rec)
	if res.State != pipeline.StateCompleted {
		t.Errorf("state = %s: %+v", res.State, res)
	}

	// The tag really was applied.
	rec = doJSON(t, router, http.MethodGet, "/notes/loose-end.md", nil)
	got := decode[NoteDetail](t, rec)
	if len(got.Tags) != 1 || got.Tags[0] != "archive" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestAuthMiddleware(t *testing.T) {
	store, err := vault.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	db, err := index.Open(filepath.Join(t.TempDir(), "view.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	locks := vault.NewLocker()
	notes := noteops.NewService(store, locks, db, nil, logger)
	folders := folderops.NewService(store, db, logger)
	tags := tagops.NewService(store, locks, db, logger)

	router := NewRouter(NewHandler(notes, folders, tags, nil), true, "secret", nil)

	req := httptest.NewRequest(http.MethodGet, "/notes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/notes", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated status = %d", rec.Code)
	}
}
