package tocsync

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/vowpost/internal/markup"
	"github.com/starford/vowpost/internal/toc"
)

func TestSync_IntroDetails(t *testing.T) {
	res, err := Sync(`<h1>Intro</h1><p>x</p><h2>Details</h2>`, Options{})
	require.NoError(t, err)

	require.Len(t, res.Headings, 2)
	assert.Equal(t, 1, res.Headings[0].Level)
	assert.Equal(t, "Intro", res.Headings[0].Text)
	assert.Equal(t, 2, res.Headings[1].Level)
	assert.Equal(t, "Details", res.Headings[1].Text)
	assert.NotEqual(t, res.Headings[0].ID, res.Headings[1].ID)
	assert.Equal(t, 2, res.Assigned)
	assert.False(t, res.Inlined)

	frag := toc.RenderInline(res.Headings)
	first := strings.Index(frag, `href="#`+res.Headings[0].ID+`"`)
	second := strings.Index(frag, `href="#`+res.Headings[1].ID+`"`)
	assert.True(t, first >= 0 && second > first, "links out of order: %s", frag)
	assert.Equal(t, 2, strings.Count(frag, "<a "))
}

func TestSync_AllHeadingsIdentifiedAndDistinct(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, "<h%d>Same title</h%d><p>body</p>", i%6+1, i%6+1)
	}
	res, err := Sync(sb.String(), Options{IDs: markup.IDOptions{Slug: true}})
	require.NoError(t, err)
	require.Len(t, res.Headings, 25)

	seen := make(map[string]struct{})
	for _, h := range res.Headings {
		require.NotEmpty(t, h.ID)
		_, dup := seen[h.ID]
		require.False(t, dup, "duplicate id %q", h.ID)
		seen[h.ID] = struct{}{}
	}
}

func TestSync_Idempotent(t *testing.T) {
	in := `<div id="table-of-contents"></div><h1>Our story</h1><h2 id="kept">Venue</h2><h2>Venue</h2><h3></h3>`
	first, err := Sync(in, Options{})
	require.NoError(t, err)
	second, err := Sync(first.Markup, Options{})
	require.NoError(t, err)

	assert.Equal(t, first.Markup, second.Markup)
	assert.Equal(t, first.Headings, second.Headings)
	assert.Equal(t, 0, second.Assigned)
	assert.Equal(t, "kept", second.Headings[1].ID)
}

func TestSync_InlinePlaceholderFilled(t *testing.T) {
	in := `<div id="table-of-contents"></div><h1>Menu</h1><h2>Starters</h2>`
	res, err := Sync(in, Options{})
	require.NoError(t, err)
	assert.True(t, res.Inlined)
	assert.Contains(t, res.Markup, `<div id="table-of-contents"><ul class="toc">`)
	assert.Contains(t, res.Markup, `<a href="#heading-0">Menu</a>`)
	assert.Contains(t, res.Markup, `<a href="#heading-1">Starters</a>`)
	// The fragment inside the placeholder is not scanned as content.
	assert.Len(t, res.Headings, 2)
}

func TestSync_NoHeadings(t *testing.T) {
	res, err := Sync(`<p>nothing to see</p>`, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Headings)
	assert.Equal(t, `<p>nothing to see</p>`, res.Markup)
	assert.Equal(t, 0, toc.NewPanel(res.Headings).Len())
}

func TestSync_TOCMatchesHeadingCount(t *testing.T) {
	res, err := Sync(`<h2>a</h2><h4>b</h4><h1>c</h1><h3>d</h3>`, Options{})
	require.NoError(t, err)
	flat := toc.Flatten(toc.Build(res.Headings))
	require.Len(t, flat, 4)
	for i, n := range flat {
		assert.Equal(t, res.Headings[i].ID, n.ID)
	}
}

func TestOutline_DoesNotAssign(t *testing.T) {
	hs, err := Outline(`<h1>A</h1><h2 id="b">B</h2>`)
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Empty(t, hs[0].ID)
	assert.Equal(t, "b", hs[1].ID)
}

func TestDocumentLocator(t *testing.T) {
	doc, err := markup.Parse(`<h1 id="a">A</h1>`)
	require.NoError(t, err)
	loc := NewDocumentLocator(doc)
	p := toc.NewPanel(doc.Headings())

	assert.True(t, p.Navigate(loc, "a"))
	require.NotNil(t, loc.Last())
	assert.True(t, loc.Last().Visited)
	assert.Equal(t, toc.ScrollSmooth, loc.Last().Options.Behavior)

	assert.False(t, p.Navigate(loc, "missing"))
}

func TestSync_HeadingCarryingMarkerIDKeepsText(t *testing.T) {
	res, err := Sync(`<h2 id="table-of-contents">Contents</h2><h2>Venue</h2>`, Options{})
	require.NoError(t, err)

	require.Len(t, res.Headings, 2)
	assert.Equal(t, "Contents", res.Headings[0].Text)
	assert.NotEqual(t, markup.PlaceholderID, res.Headings[0].ID)
	assert.False(t, res.Inlined)
	assert.Contains(t, res.Markup, ">Contents</h2>")
	assert.NotContains(t, res.Markup, "<ul")
}

func TestSync_PaddedIDMatchesLink(t *testing.T) {
	res, err := Sync(`<div id="table-of-contents"></div><h1 id=" intro ">Intro</h1>`, Options{})
	require.NoError(t, err)

	require.Len(t, res.Headings, 1)
	assert.Equal(t, "intro", res.Headings[0].ID)
	assert.Contains(t, res.Markup, `<h1 id="intro">`)
	assert.Contains(t, res.Markup, `href="#intro"`)
}
