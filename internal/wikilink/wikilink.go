// Package wikilink scans and rewrites [[target]] and [[target|alias]]
// references in note bodies.
//
// Grammar notes:
//   - Delimiters are ASCII double brackets; no nesting. The first "]]" after
//     an opening "[[" closes the reference, so bracket pairs inside an alias
//     belong to the alias text and are never treated as references themselves.
//   - The target is everything up to the first "|"; the remainder is the
//     alias, preserved verbatim by rewrites.
package wikilink

import (
	"iter"
	"path"
	"regexp"
	"strings"
)

// Ref is one reference occurrence inside a body.
type Ref struct {
	Target string // link identifier as written
	Alias  string // display alias, "" when absent
	Start  int    // byte offset of the opening "[["
	End    int    // byte offset just past the closing "]]"
}

// Literal reconstructs the reference text.
func (r Ref) Literal() string {
	if r.Alias == "" {
		return "[[" + r.Target + "]]"
	}
	return "[[" + r.Target + "|" + r.Alias + "]]"
}

// Refs returns a lazy left-to-right scan of the references in body.
// Matching is non-greedy: each "[[" is closed by the first following "]]".
func Refs(body string) iter.Seq[Ref] {
	return func(yield func(Ref) bool) {
		pos := 0
		for {
			ref, next, ok := scanFrom(body, pos)
			if !ok {
				return
			}
			pos = next
			if ref.Target == "" {
				continue // malformed occurrence, keep scanning
			}
			if !yield(ref) {
				return
			}
		}
	}
}

// scanFrom finds the next "[[" at or after pos. ok is false when no further
// "[[" exists. A returned Ref with empty Target marks a malformed occurrence
// (unterminated, empty, or multi-line) that the caller should skip.
func scanFrom(body string, pos int) (Ref, int, bool) {
	open := strings.Index(body[pos:], "[[")
	if open < 0 {
		return Ref{}, 0, false
	}
	start := pos + open
	closing := strings.Index(body[start+2:], "]]")
	if closing < 0 {
		return Ref{}, 0, false
	}
	end := start + 2 + closing + 2
	inner := body[start+2 : end-2]

	// References do not span lines.
	if strings.ContainsAny(inner, "\n\r") {
		return Ref{}, start + 2, true
	}

	target, alias := inner, ""
	if i := strings.Index(inner, "|"); i >= 0 {
		target, alias = inner[:i], inner[i+1:]
	}
	target = strings.TrimSpace(target)
	if target == "" || strings.ContainsAny(target, "[]") {
		return Ref{}, start + 2, true
	}
	return Ref{Target: target, Alias: alias, Start: start, End: end}, end, true
}

// Targets returns the deduplicated reference targets of body, in order of
// first occurrence. Used when indexing a note's outgoing links.
func Targets(body string) []string {
	seen := make(map[string]struct{})
	var out []string
	for ref := range Refs(body) {
		if _, dup := seen[ref.Target]; dup {
			continue
		}
		seen[ref.Target] = struct{}{}
		out = append(out, ref.Target)
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Identifier derives the link identifier for a note path: the basename with
// the .md extension stripped and whitespace runs replaced by underscores.
// Both new targets and old-target matching go through this, so the mapping
// stays consistent across renames.
func Identifier(notePath string) string {
	slashed := strings.ReplaceAll(notePath, "\\", "/")
	base := path.Base(strings.TrimSuffix(path.Clean(slashed), ".md"))
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(base), "_")
}

// Rewrite replaces every reference whose target is exactly oldID with newID,
// preserving alias text and all surrounding content. Partial or prefix
// matches are left untouched, as are occurrences inside another reference's
// alias (the scan consumes the whole outer reference first).
func Rewrite(body, oldID, newID string) string {
	var b strings.Builder
	pos := 0
	last := 0
	for {
		ref, next, ok := scanFrom(body, pos)
		if !ok {
			break
		}
		pos = next
		if ref.Target != oldID {
			continue
		}
		b.WriteString(body[last:ref.Start])
		b.WriteString(Ref{Target: newID, Alias: ref.Alias}.Literal())
		last = ref.End
	}
	if last == 0 {
		return body
	}
	b.WriteString(body[last:])
	return b.String()
}
