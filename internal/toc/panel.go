package toc

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/starford/vowpost/internal/models"
)

// Item is a flattened, visible panel row.
type Item struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Level       int    `json:"level"`
	Indent      int    `json:"indent"`
	HasChildren bool   `json:"has_children"`
	Collapsed   bool   `json:"collapsed"`
}

// Panel is the standalone, collapsible navigation list shown next to a
// document. Panels are not safe for concurrent use.
type Panel struct {
	roots     []*Node
	byID      map[string]*Node
	collapsed map[string]bool
}

// NewPanel builds a panel with every branch expanded.
func NewPanel(headings []models.Heading) *Panel {
	p := &Panel{
		roots:     Build(headings),
		byID:      make(map[string]*Node, len(headings)),
		collapsed: make(map[string]bool),
	}
	for _, n := range Flatten(p.roots) {
		if _, dup := p.byID[n.ID]; !dup && n.ID != "" {
			p.byID[n.ID] = n
		}
	}
	return p
}

// Len returns the number of entries, collapsed or not.
func (p *Panel) Len() int {
	return len(Flatten(p.roots))
}

// Tree returns the nested entries.
func (p *Panel) Tree() []*Node {
	return p.roots
}

// Toggle flips the collapsed state of a branch and returns the new state.
// Unknown ids and leaves are ignored and report false.
func (p *Panel) Toggle(id string) bool {
	n, ok := p.byID[id]
	if !ok || len(n.Children) == 0 {
		return false
	}
	p.collapsed[id] = !p.collapsed[id]
	return p.collapsed[id]
}

// CollapseAll folds every branch.
func (p *Panel) CollapseAll() {
	for id, n := range p.byID {
		if len(n.Children) > 0 {
			p.collapsed[id] = true
		}
	}
}

// ExpandAll unfolds every branch.
func (p *Panel) ExpandAll() {
	clear(p.collapsed)
}

// Visible lists the rows a reader currently sees, in document order.
func (p *Panel) Visible() []Item {
	var out []Item
	var visit func([]*Node)
	visit = func(ns []*Node) {
		for _, n := range ns {
			folded := p.collapsed[n.ID]
			out = append(out, Item{
				ID:          n.ID,
				Text:        n.Text,
				Level:       n.Level,
				Indent:      n.Indent,
				HasChildren: len(n.Children) > 0,
				Collapsed:   folded,
			})
			if !folded {
				visit(n.Children)
			}
		}
	}
	visit(p.roots)
	return out
}

// RenderHTML renders the panel as a <nav> of nested <details> blocks so that
// branches collapse without scripting. An empty panel renders nothing.
func (p *Panel) RenderHTML() string {
	if len(p.roots) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(`<nav class="toc-panel" aria-label="Table of contents">`)
	p.writeNodes(&sb, p.roots)
	sb.WriteString(`</nav>`)
	return sb.String()
}

func (p *Panel) writeNodes(sb *strings.Builder, nodes []*Node) {
	sb.WriteString(`<ul>`)
	for _, n := range nodes {
		sb.WriteString(`<li class="toc-indent-`)
		sb.WriteString(strconv.Itoa(n.Indent))
		sb.WriteString(`">`)
		link := `<a href="#` + html.EscapeString(n.ID) + `" data-target="` + html.EscapeString(n.ID) + `">` +
			html.EscapeString(n.Text) + `</a>`
		if len(n.Children) == 0 {
			sb.WriteString(link)
		} else {
			if p.collapsed[n.ID] {
				sb.WriteString(`<details>`)
			} else {
				sb.WriteString(`<details open>`)
			}
			sb.WriteString(`<summary>`)
			sb.WriteString(link)
			sb.WriteString(`</summary>`)
			p.writeNodes(sb, n.Children)
			sb.WriteString(`</details>`)
		}
		sb.WriteString(`</li>`)
	}
	sb.WriteString(`</ul>`)
}

// Navigate scrolls the target heading to the top of the viewport with smooth
// motion. A missing target is silently ignored and reported as false.
func (p *Panel) Navigate(loc Locator, id string) bool {
	if loc == nil || id == "" {
		return false
	}
	target, ok := loc.Locate(id)
	if !ok || target == nil {
		return false
	}
	target.ScrollIntoView(ScrollOptions{Behavior: ScrollSmooth, Block: BlockStart})
	return true
}
