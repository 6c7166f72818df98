// Package parser extracts front matter, title, tags, plain text and headings
// from stored HTML posts.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/vowpost/internal/markup"
	"github.com/starford/vowpost/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a post.
type Result struct {
	Frontmatter map[string]interface{}
	// Header is the raw front matter block, delimiters included, or "".
	Header   string
	Body     string
	Text     string
	Tags     []string
	Title    string
	Headings []models.Heading
}

// Parse splits front matter from the HTML body and derives the rest from the
// body's markup.
func Parse(data []byte) (*Result, error) {
	fm, header, body := splitFrontmatter(data)

	doc, err := markup.Parse(body)
	if err != nil {
		return nil, err
	}
	headings := doc.Headings()
	text := doc.Text()

	return &Result{
		Frontmatter: fm,
		Header:      header,
		Body:        body,
		Text:        text,
		Tags:        extractTags(text, fm),
		Title:       deriveTitle(fm, headings),
		Headings:    headings,
	}, nil
}

// Join prepends a raw front matter header to a body.
func Join(header, body string) []byte {
	if header == "" {
		return []byte(body)
	}
	return []byte(header + body)
}

// splitFrontmatter separates YAML front matter (between leading --- delimiters)
// from the HTML body. If no valid front matter is found the entire content is
// body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, "", string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, "", string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")
	header := string(trimmed[:len(trimmed)-len(body)])

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", string(data)
	}

	return fm, header, body
}

// extractTags collects tags from the front matter "tags" field and #tags in
// the plain text.
func extractTags(text string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if raw, ok := fm["tags"]; ok {
		if items, ok := raw.([]interface{}); ok {
			for _, item := range items {
				if s, ok := item.(string); ok {
					add(strings.TrimSpace(s))
				}
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	return out
}

// deriveTitle returns the front matter "title" if present, otherwise the text
// of the first h1, otherwise "".
func deriveTitle(fm map[string]interface{}, headings []models.Heading) string {
	if t, ok := fm["title"].(string); ok && t != "" {
		return t
	}
	for _, h := range headings {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}
