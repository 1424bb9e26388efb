package mcpserver

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/othala/internal/folderops"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/noteops"
	"github.com/starford/othala/internal/tagops"
	"github.com/starford/othala/internal/tools"
	"github.com/starford/othala/internal/vault"
	"github.com/starford/othala/internal/wikilink"
)

func testServer(t *testing.T) (*Server, vault.Provider) {
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
	registry := tools.DefaultRegistry(tools.Deps{
		Notes:   noteops.NewService(store, locks, db, rewriter, logger),
		Folders: folderops.NewService(store, db, logger),
		Tags:    tagops.NewService(store, locks, db, logger),
	})

	return New(registry), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	tool, err := srv.registry.Get(name)
	if err != nil {
		t.Fatalf("tool %s: %v", name, err)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := srv.handler(tool)(context.Background(), req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadNote(t *testing.T) {
	srv, store := testServer(t)

	r := callTool(t, srv, "create_note", map[string]any{
		"title": "Test Note",
		"body":  "Hello\n",
	})
	if r.IsError {
		t.Fatalf("create failed: %s", resultText(r))
	}
	if !store.Exists("test-note.md") {
		t.Fatal("note not written")
	}

	r = callTool(t, srv, "read_note", map[string]any{"path": "test-note.md"})
	text := resultText(r)
	if !strings.Contains(text, "Test Note") || !strings.Contains(text, "Hello") {
		t.Errorf("read result = %q", text)
	}
}

func TestReadNoteMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{"path": "nope.md"})
	if !r.IsError {
		t.Error("expected error for missing note")
	}
	if got := resultText(r); got != "note not found" {
		t.Errorf("error text = %q", got)
	}
}

func TestMissingRequiredParameter(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_note", map[string]any{})
	if !r.IsError {
		t.Error("expected error for missing parameter")
	}
}

func TestMoveNoteRewritesLinks(t *testing.T) {
	srv, store := testServer(t)

	callTool(t, srv, "create_note", map[string]any{"title": "Target"})
	callTool(t, srv, "create_note", map[string]any{"title": "Source", "body": "See [[target]].\n"})

	r := callTool(t, srv, "move_note", map[string]any{
		"source": "target.md",
		"dest":   "renamed.md",
	})
	if r.IsError {
		t.Fatalf("move failed: %s", resultText(r))
	}

	data, err := store.Read("source.md")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[[renamed]]") {
		t.Errorf("link not rewritten:\n%s", data)
	}
}

func TestGetNoteContract(t *testing.T) {
	srv, _ := testServer(t)

	r, err := srv.getNoteContract(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(r), "wikilinks") {
		t.Error("contract text missing wikilink rules")
	}
}

func TestNoteFormatResource(t *testing.T) {
	srv, _ := testServer(t)

	contents, err := srv.readNoteFormatResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("contents = %d entries", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != "othala://note-format" {
		t.Errorf("resource = %+v", contents[0])
	}
}
