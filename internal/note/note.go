// Package note implements the document model: a Markdown note split into
// YAML frontmatter and body, with typed access to the well-known fields.
package note

import (
	"strings"
	"time"
)

// TimeLayout is the timestamp format used for created/modified fields.
const TimeLayout = time.RFC3339

// Frontmatter is the structured header of a document. Values are the plain
// Go shapes produced by YAML decoding (string, bool, int, []any, map[string]any).
type Frontmatter map[string]any

// Document is a single note identified by its vault-relative path.
type Document struct {
	Path        string
	Frontmatter Frontmatter
	Body        string
}

// Title returns the frontmatter title, or "" when unset.
func (d *Document) Title() string {
	if d.Frontmatter == nil {
		return ""
	}
	if s, ok := d.Frontmatter["title"].(string); ok {
		return s
	}
	return ""
}

// SetTitle sets the frontmatter title.
func (d *Document) SetTitle(title string) {
	d.ensureFrontmatter()
	d.Frontmatter["title"] = title
}

// Tags returns the frontmatter tag set in declaration order, deduplicated.
func (d *Document) Tags() []string {
	if d.Frontmatter == nil {
		return nil
	}
	raw, ok := d.Frontmatter["tags"]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	appendTag := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				appendTag(s)
			}
		}
	case []string:
		for _, s := range v {
			appendTag(s)
		}
	case string:
		appendTag(v)
	}
	return out
}

// SetTags replaces the tag set, dropping duplicates while preserving order.
func (d *Document) SetTags(tags []string) {
	d.ensureFrontmatter()
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	d.Frontmatter["tags"] = out
}

// HasTag reports whether the document carries tag.
func (d *Document) HasTag(tag string) bool {
	for _, t := range d.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag inserts tag if absent. It reports whether the set changed.
func (d *Document) AddTag(tag string) bool {
	if d.HasTag(tag) {
		return false
	}
	d.SetTags(append(d.Tags(), tag))
	return true
}

// RemoveTag deletes tag if present. It reports whether the set changed.
func (d *Document) RemoveTag(tag string) bool {
	if !d.HasTag(tag) {
		return false
	}
	tags := d.Tags()
	out := tags[:0]
	for _, t := range tags {
		if t != tag {
			out = append(out, t)
		}
	}
	d.SetTags(out)
	return true
}

// RenameTag replaces old with new in-place, preserving the position of old
// among the other tags. When new already exists the old entry is dropped
// instead, so the set never holds duplicates. Reports whether the set changed.
func (d *Document) RenameTag(oldTag, newTag string) bool {
	if !d.HasTag(oldTag) {
		return false
	}
	tags := d.Tags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == oldTag {
			out = append(out, newTag)
			continue
		}
		out = append(out, t)
	}
	d.SetTags(out) // SetTags deduplicates if newTag pre-existed
	return true
}

// Created returns the created timestamp, or the zero time when unset/invalid.
func (d *Document) Created() time.Time {
	return d.timeField("created")
}

// Modified returns the modified timestamp, or the zero time when unset/invalid.
func (d *Document) Modified() time.Time {
	return d.timeField("modified")
}

// Stamp sets both created and modified to now.
func (d *Document) Stamp(now time.Time) {
	d.ensureFrontmatter()
	ts := now.UTC().Format(TimeLayout)
	d.Frontmatter["created"] = ts
	d.Frontmatter["modified"] = ts
}

// Touch bumps modified to now, never moving it backwards.
func (d *Document) Touch(now time.Time) {
	d.ensureFrontmatter()
	now = now.UTC()
	if prev := d.Modified(); prev.After(now) {
		now = prev
	}
	d.Frontmatter["modified"] = now.Format(TimeLayout)
}

// YAML decoding may surface timestamps as time.Time or as plain strings.
func (d *Document) timeField(key string) time.Time {
	if d.Frontmatter == nil {
		return time.Time{}
	}
	switch v := d.Frontmatter[key].(type) {
	case time.Time:
		return v
	case string:
		t, err := time.Parse(TimeLayout, v)
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}

func (d *Document) ensureFrontmatter() {
	if d.Frontmatter == nil {
		d.Frontmatter = Frontmatter{}
	}
}
