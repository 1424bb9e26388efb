package tools

import (
	"context"
	"fmt"

	"github.com/starford/othala/internal/folderops"
	"github.com/starford/othala/internal/noteops"
	"github.com/starford/othala/internal/tagops"
)

// Deps wires the operators the built-in toolset dispatches to.
type Deps struct {
	Notes   *noteops.Service
	Folders *folderops.Service
	Tags    *tagops.Service
}

// DefaultRegistry returns a registry holding the complete built-in toolset.
func DefaultRegistry(d Deps) *Registry {
	r := NewRegistry()
	for _, t := range buildTools(d) {
		// Names are static, a duplicate is a programming error.
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func buildTools(d Deps) []*Tool {
	return []*Tool{
		NewTool("create_note",
			"Create a new note. The filename is derived from the title.",
			[]Param{
				{Name: "title", Type: TypeString, Description: "Note title", Required: true},
				{Name: "body", Type: TypeString, Description: "Markdown body"},
				{Name: "tags", Type: TypeArray, Description: "Initial tags"},
				{Name: "folder", Type: TypeString, Description: "Destination folder"},
				{Name: "template", Type: TypeString, Description: "Template name from the templates folder"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				detail, err := d.Notes.Create(ctx, noteops.CreateParams{
					Title:    strArg(args, "title"),
					Body:     strArg(args, "body"),
					Tags:     strSliceArg(args, "tags"),
					Folder:   strArg(args, "folder"),
					Template: strArg(args, "template"),
				})
				if err != nil {
					return nil, "", err
				}
				return detail, fmt.Sprintf("created %s", detail.Path), nil
			}),

		NewTool("update_note",
			"Update an existing note. Omitted fields keep their current value.",
			[]Param{
				{Name: "path", Type: TypeString, Description: "Vault-relative note path", Required: true},
				{Name: "title", Type: TypeString, Description: "New title"},
				{Name: "body", Type: TypeString, Description: "New body"},
				{Name: "tags", Type: TypeArray, Description: "Replacement tag set"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				p := noteops.UpdateParams{}
				if v, ok := args["title"].(string); ok {
					p.Title = &v
				}
				if v, ok := args["body"].(string); ok {
					p.Body = &v
				}
				if _, ok := args["tags"]; ok {
					p.Tags = strSliceArg(args, "tags")
				}
				detail, err := d.Notes.Update(ctx, strArg(args, "path"), p)
				if err != nil {
					return nil, "", err
				}
				return detail, fmt.Sprintf("updated %s", detail.Path), nil
			}),

		NewTool("delete_note",
			"Delete a note. Wikilinks pointing at it are left dangling.",
			[]Param{
				{Name: "path", Type: TypeString, Description: "Vault-relative note path", Required: true},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				path := strArg(args, "path")
				if err := d.Notes.Delete(ctx, path); err != nil {
					return nil, "", err
				}
				return nil, fmt.Sprintf("deleted %s", path), nil
			}),

		NewTool("move_note",
			"Move or rename a note, rewriting wikilinks in referencing notes.",
			[]Param{
				{Name: "source", Type: TypeString, Description: "Current note path", Required: true},
				{Name: "dest", Type: TypeString, Description: "New note path", Required: true},
				{Name: "new_title", Type: TypeString, Description: "New title"},
				{Name: "update_links", Type: TypeBoolean, Description: "Rewrite inbound links (default true)"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				res, err := d.Notes.MoveRename(ctx,
					strArg(args, "source"), strArg(args, "dest"),
					strArg(args, "new_title"), boolArg(args, "update_links", true))
				if err != nil {
					return res, "", err
				}
				return res, fmt.Sprintf("moved %s to %s, %d notes relinked", res.Source, res.Dest, res.LinksUpdated), nil
			}),

		NewTool("read_note",
			"Read a note including frontmatter, body and backlinks.",
			[]Param{
				{Name: "path", Type: TypeString, Description: "Vault-relative note path", Required: true},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				detail, err := d.Notes.Read(ctx, strArg(args, "path"))
				if err != nil {
					return nil, "", err
				}
				return detail, detail.Path, nil
			}),

		NewTool("list_notes",
			"List notes, newest first, optionally filtered by tag.",
			[]Param{
				{Name: "limit", Type: TypeNumber, Description: "Page size"},
				{Name: "offset", Type: TypeNumber, Description: "Page offset"},
				{Name: "tag", Type: TypeString, Description: "Only notes carrying this tag"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				items, total, err := d.Notes.List(ctx, intArg(args, "limit"), intArg(args, "offset"), strArg(args, "tag"))
				if err != nil {
					return nil, "", err
				}
				return map[string]any{"notes": items, "total": total}, fmt.Sprintf("%d notes", total), nil
			}),

		NewTool("create_folder",
			"Create a folder. Creating an existing folder succeeds without effect.",
			[]Param{
				{Name: "path", Type: TypeString, Description: "Folder path", Required: true},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				path := strArg(args, "path")
				if err := d.Folders.Create(ctx, path); err != nil {
					return nil, "", err
				}
				return nil, fmt.Sprintf("folder %s ready", path), nil
			}),

		NewTool("delete_folder",
			"Recursively delete a folder and every note inside it.",
			[]Param{
				{Name: "path", Type: TypeString, Description: "Folder path", Required: true},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				path := strArg(args, "path")
				if err := d.Folders.Delete(ctx, path); err != nil {
					return nil, "", err
				}
				return nil, fmt.Sprintf("deleted folder %s", path), nil
			}),

		NewTool("move_folder",
			"Move a folder subtree to a new location.",
			[]Param{
				{Name: "source", Type: TypeString, Description: "Current folder path", Required: true},
				{Name: "dest", Type: TypeString, Description: "New folder path", Required: true},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				src, dst := strArg(args, "source"), strArg(args, "dest")
				if err := d.Folders.Move(ctx, src, dst); err != nil {
					return nil, "", err
				}
				return nil, fmt.Sprintf("moved %s to %s", src, dst), nil
			}),

		NewTool("folder_stats",
			"Recursive note and subfolder counts for a folder.",
			[]Param{
				{Name: "path", Type: TypeString, Description: "Folder path, empty for the vault root"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				stats, err := d.Folders.Stats(ctx, strArg(args, "path"))
				if err != nil {
					return nil, "", err
				}
				return stats, fmt.Sprintf("%d notes, %d subfolders", stats.DocumentCount, stats.SubfolderCount), nil
			}),

		NewTool("folder_contents",
			"Direct subfolders and notes of one folder.",
			[]Param{
				{Name: "path", Type: TypeString, Description: "Folder path, empty for the vault root"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				contents, err := d.Folders.ListContents(ctx, strArg(args, "path"))
				if err != nil {
					return nil, "", err
				}
				return contents, fmt.Sprintf("%d folders, %d notes", len(contents.Folders), len(contents.Notes)), nil
			}),

		NewTool("add_tag",
			"Add a tag to every note in scope. Scope entries may be paths or glob patterns; empty scope means the whole vault.",
			[]Param{
				{Name: "tag", Type: TypeString, Description: "Tag to add", Required: true},
				{Name: "scope", Type: TypeArray, Description: "Paths or glob patterns"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				res, err := d.Tags.Add(ctx, strArg(args, "tag"), strSliceArg(args, "scope"))
				if err != nil {
					return nil, "", err
				}
				return res, fmt.Sprintf("tagged %d notes with %s", res.AffectedCount, res.Tag), nil
			}),

		NewTool("remove_tag",
			"Remove a tag from every note in scope.",
			[]Param{
				{Name: "tag", Type: TypeString, Description: "Tag to remove", Required: true},
				{Name: "scope", Type: TypeArray, Description: "Paths or glob patterns"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				res, err := d.Tags.Remove(ctx, strArg(args, "tag"), strSliceArg(args, "scope"))
				if err != nil {
					return nil, "", err
				}
				return res, fmt.Sprintf("untagged %d notes", res.AffectedCount), nil
			}),

		NewTool("rename_tag",
			"Rename a tag across the whole vault.",
			[]Param{
				{Name: "old_tag", Type: TypeString, Description: "Current tag", Required: true},
				{Name: "new_tag", Type: TypeString, Description: "Replacement tag", Required: true},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				res, err := d.Tags.Rename(ctx, strArg(args, "old_tag"), strArg(args, "new_tag"))
				if err != nil {
					return nil, "", err
				}
				return res, fmt.Sprintf("renamed tag on %d notes", res.AffectedCount), nil
			}),

		NewTool("list_tags",
			"List every tag in the vault with its note count.",
			nil,
			func(ctx context.Context, _ map[string]any) (any, string, error) {
				counts, err := d.Tags.List(ctx)
				if err != nil {
					return nil, "", err
				}
				return counts, fmt.Sprintf("%d tags", len(counts)), nil
			}),

		NewTool("search_notes",
			"Full-text search over titles and bodies.",
			[]Param{
				{Name: "query", Type: TypeString, Description: "Search query", Required: true},
				{Name: "limit", Type: TypeNumber, Description: "Maximum hits"},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				hits, err := d.Notes.Search(ctx, strArg(args, "query"), intArg(args, "limit"))
				if err != nil {
					return nil, "", err
				}
				return hits, fmt.Sprintf("%d hits", len(hits)), nil
			}),

		NewTool("get_backlinks",
			"List the notes whose wikilinks reference the given note.",
			[]Param{
				{Name: "path", Type: TypeString, Description: "Vault-relative note path", Required: true},
			},
			func(ctx context.Context, args map[string]any) (any, string, error) {
				bl, err := d.Notes.Backlinks(ctx, strArg(args, "path"))
				if err != nil {
					return nil, "", err
				}
				return bl, fmt.Sprintf("%d backlinks", len(bl)), nil
			}),
	}
}

func strArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func strSliceArg(args map[string]any, name string) []string {
	switch v := args[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func boolArg(args map[string]any, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}

func intArg(args map[string]any, name string) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}
