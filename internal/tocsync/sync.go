// Package tocsync runs one synchronisation pass over a document's markup:
// identify headings, rebuild the table of contents and write the inline
// fragment back into the placeholder.
package tocsync

import (
	"github.com/starford/vowpost/internal/markup"
	"github.com/starford/vowpost/internal/models"
	"github.com/starford/vowpost/internal/toc"
)

// Options configures a synchronisation pass.
type Options struct {
	IDs markup.IDOptions
}

// Result holds the output of a synchronisation pass.
type Result struct {
	Markup   string           `json:"markup"`
	Headings []models.Heading `json:"headings"`
	Assigned int              `json:"assigned"`
	Inlined  bool             `json:"inlined"`
}

// Sync parses content, assigns missing heading ids, fills the inline table of
// contents placeholder when present, and returns the updated markup together
// with the headings it was derived from.
func Sync(content string, opts Options) (*Result, error) {
	doc, err := markup.Parse(content)
	if err != nil {
		return nil, err
	}
	return SyncDocument(doc, opts)
}

// SyncDocument is Sync for an already parsed document. doc is mutated.
func SyncDocument(doc *markup.Document, opts Options) (*Result, error) {
	assigned := doc.AssignIDs(opts.IDs)
	headings := doc.Headings()

	inlined, err := doc.FillPlaceholder(toc.RenderInline(headings))
	if err != nil {
		return nil, err
	}

	out, err := doc.Render()
	if err != nil {
		return nil, err
	}

	return &Result{
		Markup:   out,
		Headings: headings,
		Assigned: assigned,
		Inlined:  inlined,
	}, nil
}

// Outline returns the headings of content without modifying it. Headings
// that have not been synchronised yet are reported with an empty ID.
func Outline(content string) ([]models.Heading, error) {
	doc, err := markup.Parse(content)
	if err != nil {
		return nil, err
	}
	return doc.Headings(), nil
}
