// Package apperr defines the error taxonomy shared by all vault operators.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoteNotFound is returned when a path does not resolve to an existing note.
	ErrNoteNotFound = errors.New("note not found")
	// ErrAlreadyExists is returned when creating a note whose path is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrPathEscape is returned when a relative path resolves outside the vault root.
	ErrPathEscape = errors.New("path escapes vault root")
	// ErrMalformedFrontmatter is returned when a frontmatter block opens but
	// never closes, or its YAML cannot be decoded.
	ErrMalformedFrontmatter = errors.New("malformed frontmatter")
	// ErrFolderCreate is returned when a destination folder cannot be created.
	ErrFolderCreate = errors.New("folder create failed")
	// ErrInvalidParameter is returned by tool dispatch when parameters fail
	// schema validation.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrToolNotFound is returned during planning when a required tool is not
	// registered.
	ErrToolNotFound = errors.New("tool not found")
	// ErrClassification is returned when the external task classifier fails.
	ErrClassification = errors.New("classification failed")
	// ErrConflict is returned on optimistic-concurrency checksum mismatch.
	ErrConflict = errors.New("conflict")
)

// CascadeError reports partial failure of a multi-document link rewrite.
// Changed counts the documents successfully rewritten; Failed lists the
// paths whose read or write failed.
type CascadeError struct {
	Changed int
	Failed  []string
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("cascade rewrite: %d changed, %d failed (%s)",
		e.Changed, len(e.Failed), strings.Join(e.Failed, ", "))
}
