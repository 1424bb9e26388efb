package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/folderops"
	"github.com/starford/othala/internal/noteops"
	"github.com/starford/othala/internal/pipeline"
	"github.com/starford/othala/internal/tagops"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	notes   *noteops.Service
	folders *folderops.Service
	tags    *tagops.Service
	engine  *pipeline.Engine
}

// NewHandler creates a new Handler. engine may be nil, in which case the
// task endpoint responds 503.
func NewHandler(notes *noteops.Service, folders *folderops.Service, tags *tagops.Service, engine *pipeline.Engine) *Handler {
	return &Handler{notes: notes, folders: folders, tags: tags, engine: engine}
}

// wildcardPath extracts the path from the URL wildcard. Supports encoded
// slashes from OpenAPI clients (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}

// writeError maps operator errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, apperr.ErrNoteNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrPathEscape):
		writeJSON(w, http.StatusBadRequest, errorBody("path escapes the vault"))
	case errors.Is(err, apperr.ErrInvalidParameter):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid parameter"))
	case errors.Is(err, apperr.ErrMalformedFrontmatter):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("malformed frontmatter"))
	default:
		slog.Error(context, slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.notes.List(r.Context(), limit, offset, q.Get("tag"))
	if err != nil {
		writeError(w, err, "list notes failed")
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.notes.Read(r.Context(), path)
	if err != nil {
		writeError(w, err, "get note failed")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	note, err := h.notes.Create(r.Context(), noteops.CreateParams{
		Title:    req.Title,
		Body:     req.Body,
		Tags:     req.Tags,
		Folder:   req.Folder,
		Template: req.Template,
		Extra:    req.Extra,
	})
	if err != nil {
		writeError(w, err, "create note failed")
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/*.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req UpdateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Standard ETag format carries surrounding quotes.
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	note, err := h.notes.Update(r.Context(), path, noteops.UpdateParams{
		Title:   req.Title,
		Body:    req.Body,
		Tags:    req.Tags,
		Extra:   req.Extra,
		IfMatch: ifMatch,
	})
	if err != nil {
		writeError(w, err, "update note failed")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.notes.Delete(r.Context(), path); err != nil {
		writeError(w, err, "delete note failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveNote handles POST /api/notes/move.
func (h *Handler) MoveNote(w http.ResponseWriter, r *http.Request) {
	var req MoveNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" || req.Dest == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("source and dest are required"))
		return
	}
	updateLinks := true
	if req.UpdateLinks != nil {
		updateLinks = *req.UpdateLinks
	}
	res, err := h.notes.MoveRename(r.Context(), req.Source, req.Dest, req.NewTitle, updateLinks)
	if err != nil {
		var cerr *apperr.CascadeError
		if errors.As(err, &cerr) {
			// The move itself committed; report the partial link repair.
			writeJSON(w, http.StatusMultiStatus, map[string]any{
				"result": res,
				"error":  cerr.Error(),
				"failed": cerr.Failed,
			})
			return
		}
		writeError(w, err, "move note failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Backlinks handles GET /api/backlinks/*.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	bl, err := h.notes.Backlinks(r.Context(), path)
	if err != nil {
		writeError(w, err, "backlinks failed")
		return
	}
	if bl == nil {
		bl = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backlinks": bl})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.notes.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Graph handles GET /api/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.notes.Graph(r.Context())
	if err != nil {
		writeError(w, err, "graph failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes, "links": links})
}

// ListFolders handles GET /api/folders.
func (h *Handler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.folders.List(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, err, "list folders failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"folders": folders})
}

// CreateFolder handles POST /api/folders.
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req FolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.folders.Create(r.Context(), req.Path); err != nil {
		writeError(w, err, "create folder failed")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DeleteFolder handles DELETE /api/folders/*.
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.folders.Delete(r.Context(), path); err != nil {
		writeError(w, err, "delete folder failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveFolder handles POST /api/folders/move.
func (h *Handler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	var req MoveFolderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.folders.Move(r.Context(), req.Source, req.Dest); err != nil {
		writeError(w, err, "move folder failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FolderStats handles GET /api/folders/stats.
func (h *Handler) FolderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.folders.Stats(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, err, "folder stats failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FolderContents handles GET /api/folders/contents.
func (h *Handler) FolderContents(w http.ResponseWriter, r *http.Request) {
	contents, err := h.folders.ListContents(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, err, "folder contents failed")
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

// ListTags handles GET /api/tags.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.tags.List(r.Context())
	if err != nil {
		writeError(w, err, "list tags failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": counts})
}

// AddTag handles POST /api/tags/add.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.tags.Add(r.Context(), req.Tag, req.Scope)
	if err != nil {
		writeError(w, err, "add tag failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RemoveTag handles POST /api/tags/remove.
func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	var req TagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.tags.Remove(r.Context(), req.Tag, req.Scope)
	if err != nil {
		writeError(w, err, "remove tag failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RenameTag handles POST /api/tags/rename.
func (h *Handler) RenameTag(w http.ResponseWriter, r *http.Request) {
	var req RenameTagRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.tags.Rename(r.Context(), req.OldTag, req.NewTag)
	if err != nil {
		writeError(w, err, "rename tag failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SubmitTask handles POST /api/tasks.
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("task pipeline is not configured"))
		return
	}
	var req TaskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("input is required"))
		return
	}

	res, err := h.engine.Execute(r.Context(), req.Input)
	if err != nil && res == nil {
		writeError(w, err, "task failed")
		return
	}
	// Per-step failures and classification errors are reported in the body.
	writeJSON(w, http.StatusOK, res)
}
