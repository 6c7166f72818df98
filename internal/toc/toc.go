// Package toc derives tables of contents from a document's headings. The same
// heading slice feeds both the inline fragment written into the document and
// the standalone reader panel.
package toc

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/vowpost/internal/models"
)

// Node is one entry of the nested table of contents.
type Node struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Level    int     `json:"level"`
	Indent   int     `json:"indent"`
	Children []*Node `json:"children,omitempty"`
}

// Build nests headings under the nearest preceding heading of a lower level.
// Level jumps (h1 followed by h3) nest directly; order is preserved.
func Build(headings []models.Heading) []*Node {
	var roots []*Node
	var stack []*Node
	for _, h := range headings {
		n := &Node{ID: h.ID, Text: h.Text, Level: h.Level, Indent: indent(h.Level)}
		for len(stack) > 0 && stack[len(stack)-1].Level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, n)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, n)
		}
		stack = append(stack, n)
	}
	return roots
}

// Flatten returns the nodes in document order.
func Flatten(nodes []*Node) []*Node {
	var out []*Node
	var visit func([]*Node)
	visit = func(ns []*Node) {
		for _, n := range ns {
			out = append(out, n)
			visit(n.Children)
		}
	}
	visit(nodes)
	return out
}

// RenderInline produces the fragment written into the document placeholder:
// nested lists of links, each item classed with its indent. It returns an
// empty list when there are no headings.
func RenderInline(headings []models.Heading) string {
	var sb strings.Builder
	writeList(&sb, Build(headings), true)
	return sb.String()
}

func writeList(sb *strings.Builder, nodes []*Node, top bool) {
	if top {
		sb.WriteString(`<ul class="toc">`)
	} else {
		sb.WriteString(`<ul>`)
	}
	for _, n := range nodes {
		sb.WriteString(`<li class="toc-item toc-indent-`)
		sb.WriteString(strconv.Itoa(n.Indent))
		sb.WriteString(`"><a href="#`)
		sb.WriteString(html.EscapeString(n.ID))
		sb.WriteString(`">`)
		sb.WriteString(html.EscapeString(n.Text))
		sb.WriteString(`</a>`)
		if len(n.Children) > 0 {
			writeList(sb, n.Children, false)
		}
		sb.WriteString(`</li>`)
	}
	sb.WriteString(`</ul>`)
}

func indent(level int) int {
	if level < 1 {
		return 0
	}
	return level - 1
}
