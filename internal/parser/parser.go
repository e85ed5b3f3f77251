// Package parser reads materialized notes back into their frontmatter,
// body and sync identity.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/coursevault/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Note is a parsed Markdown note.
type Note struct {
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Body        string         `json:"body"`
	Title       string         `json:"title"`
	Tags        []string       `json:"tags,omitempty"`
	// Key is the synced item the note was generated from, if the
	// frontmatter identifies one.
	Key *models.ItemKey `json:"key,omitempty"`
}

// Parse splits raw note bytes into frontmatter and body. Notes without
// frontmatter, or with frontmatter that is not valid YAML, are all body.
func Parse(data []byte) *Note {
	fm, body := splitFrontmatter(data)
	return &Note{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Tags:        extractTags(body, fm),
		Key:         itemKey(fm),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- lines)
// from the Markdown body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

// itemKey maps the type/canvas_id frontmatter written by the renderer back
// to an item identity.
func itemKey(fm map[string]any) *models.ItemKey {
	if fm == nil {
		return nil
	}
	var kind models.Kind
	switch fm["type"] {
	case "assignment":
		kind = models.KindAssignment
	case "calendar_event":
		kind = models.KindEvent
	default:
		return nil
	}
	raw, ok := fm["canvas_id"]
	if !ok || raw == nil {
		return nil
	}
	id := fmt.Sprint(raw)
	if id == "" {
		return nil
	}
	return &models.ItemKey{Kind: kind, ID: id}
}

// extractTags collects tags from the frontmatter "tags" list and inline
// #tags in the body, in that order, without duplicates.
func extractTags(body string, fm map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
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

	if list, ok := fm["tags"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise the empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
