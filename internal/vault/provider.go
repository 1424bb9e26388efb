// Package vault provides sandboxed file access to the document collection.
// All paths handed to a Provider are vault-relative; resolution rejects
// anything that escapes the vault root.
package vault

import "time"

// NoteInfo is lightweight metadata for one note file on disk.
type NoteInfo struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FolderStats is the recursive aggregate over a folder subtree.
type FolderStats struct {
	DocumentCount  int `json:"document_count"`
	SubfolderCount int `json:"subfolder_count"`
}

// Provider is the interface for vault file and folder operations.
// The mutation engine is the only writer; nothing else touches the files.
type Provider interface {
	// List walks dir (vault-relative) and returns metadata for every .md file.
	List(dir string) ([]NoteInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent folders.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath, creating parent folders as needed.
	Move(oldPath, newPath string) error
	// Exists reports whether a file or folder exists at path.
	Exists(path string) bool
	// MkDir creates the folder at path. Creating an existing folder is a no-op.
	MkDir(path string) error
	// RemoveDir recursively removes the folder subtree at path.
	RemoveDir(path string) error
	// MoveDir relocates a folder subtree.
	MoveDir(src, dst string) error
	// Folders returns the vault-relative paths of all folders under dir,
	// recursively, excluding dir itself.
	Folders(dir string) ([]string, error)
	// Stats returns the recursive document/subfolder aggregate for dir.
	// Unreadable subpaths contribute zero rather than failing the call.
	Stats(dir string) (FolderStats, error)
}
