package index

import (
	"log/slog"
	"time"

	"github.com/starford/othala/internal/note"
	"github.com/starford/othala/internal/vault"
	"github.com/starford/othala/internal/wikilink"
)

// Sync walks the vault and brings the view up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the view
//
// Notes with malformed frontmatter are logged and skipped; the view simply
// does not carry them until they are fixed.
func Sync(db View, store vault.Provider, logger *slog.Logger) error {
	infos, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		disk[info.Path] = struct{}{}

		if checksums[info.Path] == info.Checksum {
			continue
		}

		data, err := store.Read(info.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", info.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexFile(db, info.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", info.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", info.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteNote(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexFile parses data and upserts the resulting row into the view.
// Exported so operators, the watcher, and cascade hooks share one code path.
func IndexFile(db View, path string, data []byte) error {
	doc, err := note.Parse(data)
	if err != nil {
		return err
	}

	tags := doc.Tags()
	for _, t := range note.BodyTags(doc.Body) {
		if !containsTag(tags, t) {
			tags = append(tags, t)
		}
	}

	row := NoteRow{
		Path:      path,
		Title:     doc.Title(),
		Checksum:  vault.Checksum(data),
		Tags:      tags,
		UpdatedAt: time.Now(),
	}
	return db.UpsertNote(row, doc.Body, wikilink.Targets(doc.Body))
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
