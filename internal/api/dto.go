package api

import (
	"github.com/starford/othala/internal/noteops"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Tags     []string       `json:"tags,omitempty"`
	Folder   string         `json:"folder,omitempty"`
	Template string         `json:"template,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// UpdateNoteRequest is the request body for a partial note update.
// Absent fields keep their current value.
type UpdateNoteRequest struct {
	Title *string        `json:"title,omitempty"`
	Body  *string        `json:"body,omitempty"`
	Tags  []string       `json:"tags,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// MoveNoteRequest is the request body for moving or renaming a note.
type MoveNoteRequest struct {
	Source      string `json:"source"`
	Dest        string `json:"dest"`
	NewTitle    string `json:"new_title,omitempty"`
	UpdateLinks *bool  `json:"update_links,omitempty"`
}

// FolderRequest addresses one folder.
type FolderRequest struct {
	Path string `json:"path"`
}

// MoveFolderRequest is the request body for moving a folder subtree.
type MoveFolderRequest struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// TagRequest is the request body for scoped tag mutations.
type TagRequest struct {
	Tag   string   `json:"tag"`
	Scope []string `json:"scope,omitempty"`
}

// RenameTagRequest is the request body for a collection-wide tag rename.
type RenameTagRequest struct {
	OldTag string `json:"old_tag"`
	NewTag string `json:"new_tag"`
}

// TaskRequest submits a free-form task to the pipeline.
type TaskRequest struct {
	Input string `json:"input"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteops.Detail

// NoteListItem is a lightweight item in a list response.
type NoteListItem = noteops.ListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total"`
}
