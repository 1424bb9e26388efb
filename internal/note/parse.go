package note

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/apperr"
)

const delim = "---"

// canonicalKeys is the serialization order for well-known frontmatter fields.
// Remaining keys follow alphabetically.
var canonicalKeys = []string{"title", "tags", "created", "modified"}

var inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Parse splits raw content into frontmatter and body.
//
// Content without a leading delimiter yields an empty frontmatter and the
// whole content as body. A delimiter that opens but never closes, or a header
// whose YAML cannot be decoded, yields apperr.ErrMalformedFrontmatter.
func Parse(raw []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(raw, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return &Document{Frontmatter: Frontmatter{}, Body: string(raw)}, nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, fmt.Errorf("%w: unterminated header block", apperr.ErrMalformedFrontmatter)
	}

	yamlBlock := rest[:idx]
	body := string(rest[idx+1+len(delim):])
	// Consume only the newline ending the delimiter line; leading blank
	// lines belong to the body and must survive a write/read cycle.
	if strings.HasPrefix(body, "\r\n") {
		body = body[2:]
	} else if strings.HasPrefix(body, "\n") {
		body = body[1:]
	}

	fm := Frontmatter{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrMalformedFrontmatter, err)
	}
	return &Document{Frontmatter: fm, Body: body}, nil
}

// Serialize re-emits the document as header plus body. Well-known keys come
// first in canonical order, the rest alphabetically, so output is
// deterministic and Parse(Serialize(d)) reproduces d.
func (d *Document) Serialize() ([]byte, error) {
	if len(d.Frontmatter) == 0 {
		// A bare body opening with the delimiter would re-parse as a
		// header; emit an explicit empty one so it stays body text.
		if strings.HasPrefix(strings.TrimLeft(d.Body, "\n\r"), delim) {
			return []byte(delim + "\n" + delim + "\n" + d.Body), nil
		}
		return []byte(d.Body), nil
	}

	node := &yaml.Node{Kind: yaml.MappingNode}
	appendKey := func(key string) error {
		val, ok := d.Frontmatter[key]
		if !ok {
			return nil
		}
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: key}
		valNode := &yaml.Node{}
		if err := valNode.Encode(val); err != nil {
			return fmt.Errorf("encode frontmatter %q: %w", key, err)
		}
		node.Content = append(node.Content, keyNode, valNode)
		return nil
	}

	emitted := make(map[string]struct{}, len(canonicalKeys))
	for _, key := range canonicalKeys {
		if err := appendKey(key); err != nil {
			return nil, err
		}
		emitted[key] = struct{}{}
	}
	var rest []string
	for key := range d.Frontmatter {
		if _, done := emitted[key]; !done {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		if err := appendKey(key); err != nil {
			return nil, err
		}
	}

	header, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(header)
	buf.WriteString(delim + "\n")
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

// BodyTags collects inline #tags from body text, deduplicated in order of
// first occurrence. Used by the index view alongside frontmatter tags.
func BodyTags(body string) []string {
	matches := inlineTagRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
