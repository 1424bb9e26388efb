package mcpserver

// NoteFormatContract describes the canonical Markdown note format that
// LLM consumers should follow when creating or updating notes.
const NoteFormatContract = `# Othala Note Format Contract

Every Markdown note stored in the vault MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # REQUIRED – used in search and the graph
tags:                               # OPTIONAL – YAML list; used for filtering
  - tag-one
  - tag-two
created: 2026-01-15T09:00:00Z       # Maintained by the engine (RFC 3339)
modified: 2026-01-15T09:00:00Z      # Maintained by the engine, never set manually
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other notes (without .md extension).
Use [[target|alias]] for display text that differs from the target.
` + "```" + `

## Rules

1. **Frontmatter placement.** When present, the ` + "`" + `---` + "`" + ` fences must be the
   first thing in the file. A note without frontmatter is valid; the engine
   adds the header on its first mutation.
2. **` + "`" + `title` + "`" + ` field** is the primary display name everywhere.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `, ` + "`" + `meeting-notes` + "`" + `).
   Inline ` + "`" + `#tags` + "`" + ` in the body are picked up by search and tag listings but
   are not rewritten by tag operations.
4. **Wikilinks** use double brackets: ` + "`" + `[[other-note]]` + "`" + `. The target is the
   filename stem (no ` + "`" + `.md` + "`" + ` extension). Whitespace in targets maps to
   underscores. When a note is renamed via the engine, inbound wikilinks are
   rewritten automatically; deleting a note leaves its inbound links dangling.
5. **Timestamps** (` + "`" + `created` + "`" + `, ` + "`" + `modified` + "`" + `) are engine-owned. Do not edit
   them; every mutation bumps ` + "`" + `modified` + "`" + ` and it never moves backwards.
6. **File paths** end with ` + "`" + `.md` + "`" + ` and use forward slashes. Paths that
   escape the vault root are rejected.
7. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
title: Weekly standup
tags:
  - meeting-notes
  - project-x
created: 2026-01-20T10:00:00Z
modified: 2026-01-20T10:00:00Z
---

# Weekly standup

Attendees: Alice, Bob.

## Action items

- [[alice]] to review the [[design-doc]]
- Bob to update [[roadmap|the roadmap]]
` + "```" + `
`
