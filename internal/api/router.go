package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD plus the move flow.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/move", h.MoveNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Folders.
	r.Get("/folders", h.ListFolders)
	r.Post("/folders", h.CreateFolder)
	r.Post("/folders/move", h.MoveFolder)
	r.Get("/folders/stats", h.FolderStats)
	r.Get("/folders/contents", h.FolderContents)
	r.Delete("/folders/*", h.DeleteFolder)

	// Tags.
	r.Get("/tags", h.ListTags)
	r.Post("/tags/add", h.AddTag)
	r.Post("/tags/remove", h.RemoveTag)
	r.Post("/tags/rename", h.RenameTag)

	// Search, graph, backlinks.
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)
	r.Get("/backlinks/*", h.Backlinks)

	// Task pipeline.
	r.Post("/tasks", h.SubmitTask)

	// SSE endpoint (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
