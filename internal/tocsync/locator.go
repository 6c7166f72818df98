package tocsync

import (
	"github.com/starford/vowpost/internal/markup"
	"github.com/starford/vowpost/internal/toc"
)

// Anchor is a heading located in a parsed document. Scrolling records the
// request so a server-side caller can turn it into a fragment URL.
type Anchor struct {
	ID      string
	Options toc.ScrollOptions
	Visited bool
}

// ScrollIntoView records the scroll request.
func (a *Anchor) ScrollIntoView(opts toc.ScrollOptions) {
	a.Options = opts
	a.Visited = true
}

// DocumentLocator resolves ids against a parsed document.
type DocumentLocator struct {
	doc  *markup.Document
	last *Anchor
}

// NewDocumentLocator creates a locator over doc.
func NewDocumentLocator(doc *markup.Document) *DocumentLocator {
	return &DocumentLocator{doc: doc}
}

// Locate implements toc.Locator.
func (l *DocumentLocator) Locate(id string) (toc.Target, bool) {
	if !l.doc.HasID(id) {
		return nil, false
	}
	l.last = &Anchor{ID: id}
	return l.last, true
}

// Last returns the most recently located anchor, or nil.
func (l *DocumentLocator) Last() *Anchor {
	return l.last
}
