// Package markup owns the HTML body of a document: it parses it into a node
// tree, scans and identifies headings, and fills the inline TOC placeholder.
package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/starford/vowpost/internal/models"
)

// PlaceholderID is the reserved element id that marks where the inline table
// of contents is injected. Generated heading IDs never take this value.
const PlaceholderID = "table-of-contents"

// Document is an owned, parsed copy of a markup string. Mutations apply to
// the copy only; call Render to obtain the updated markup.
type Document struct {
	root *html.Node
}

// Parse parses an HTML fragment in body context. The tokenizer recovers from
// malformed input, so an error is only returned when reading fails.
func Parse(markup string) (*Document, error) {
	root := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), root)
	if err != nil {
		return nil, fmt.Errorf("markup: parse: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Document{root: root}, nil
}

// Render serialises the document back to an HTML fragment.
func (d *Document) Render() (string, error) {
	var sb strings.Builder
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("markup: render: %w", err)
		}
	}
	return sb.String(), nil
}

// Headings returns every heading outside the TOC placeholder, in document
// order. Headings without an id are reported with an empty ID.
func (d *Document) Headings() []models.Heading {
	nodes := d.headingNodes()
	out := make([]models.Heading, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, models.Heading{
			ID:    attr(n, "id"),
			Text:  textContent(n),
			Level: headingLevel(n),
		})
	}
	return out
}

// Text returns the whitespace-collapsed plain text of the document, skipping
// script and style elements.
func (d *Document) Text() string {
	var parts []string
	walk(d.root, func(n *html.Node) bool {
		switch {
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return false
		case n.Type == html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		return true
	})
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// HasID reports whether any element carries the given id.
func (d *Document) HasID(id string) bool {
	return id != "" && d.elementByID(id) != nil
}

// HasPlaceholder reports whether the inline TOC placeholder is present.
func (d *Document) HasPlaceholder() bool {
	return d.placeholder() != nil
}

// FillPlaceholder replaces the placeholder's children with the given HTML
// fragment. It returns false, doing nothing, when there is no placeholder.
func (d *Document) FillPlaceholder(fragment string) (bool, error) {
	ph := d.placeholder()
	if ph == nil {
		return false, nil
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), ph)
	if err != nil {
		return false, fmt.Errorf("markup: parse toc fragment: %w", err)
	}
	for c := ph.FirstChild; c != nil; {
		next := c.NextSibling
		ph.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		ph.AppendChild(n)
	}
	return true, nil
}

// InsertPlaceholder adds an empty placeholder in front of the first heading,
// or at the end when there is none. It reports false if one already exists.
func (d *Document) InsertPlaceholder() bool {
	if d.HasPlaceholder() {
		return false
	}
	ph := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "id", Val: PlaceholderID},
			{Key: "class", Val: "toc-placeholder"},
		},
	}
	headings := d.headingNodes()
	if len(headings) == 0 {
		d.root.AppendChild(ph)
		return true
	}
	first := headings[0]
	first.Parent.InsertBefore(ph, first)
	return true
}

func (d *Document) headingNodes() []*html.Node {
	var out []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if headingLevel(n) > 0 {
			out = append(out, n)
			return false
		}
		return attr(n, "id") != PlaceholderID
	})
	return out
}

// placeholder returns the first non-heading element carrying PlaceholderID.
// A heading with that id is content, not a TOC slot.
func (d *Document) placeholder() *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && headingLevel(n) == 0 && attr(n, "id") == PlaceholderID {
			found = n
			return false
		}
		return true
	})
	return found
}

func (d *Document) elementByID(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits n and its descendants depth-first in document order. Returning
// false from fn skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func headingLevel(n *html.Node) int {
	if n.Type != html.ElementNode {
		return 0
	}
	switch n.DataAtom {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

// attr returns the trimmed attribute value; browsers match ids exactly, so
// AssignIDs writes the trimmed form back.
func attr(n *html.Node, key string) string {
	return strings.TrimSpace(rawAttr(n, key))
}

func rawAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return strings.Join(strings.Fields(sb.String()), " ")
}
