package markup

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultIDPrefix is prepended to every generated heading id.
const DefaultIDPrefix = "heading"

const maxSlugLen = 48

// IDOptions controls how missing heading ids are generated.
type IDOptions struct {
	// Prefix defaults to DefaultIDPrefix.
	Prefix string
	// Slug appends a slug of the heading text after the ordinal.
	Slug bool
}

// AssignIDs gives every heading lacking an id one derived from its ordinal
// among headings ("heading-3", or "heading-3-venue-tour" with Slug). Existing
// ids are kept, with surrounding whitespace trimmed; a heading repeating an
// id already used by an earlier heading, or carrying the placeholder marker,
// is treated as unidentified. Generated ids avoid every id in the document
// and the placeholder marker. It returns the number of ids written.
func (d *Document) AssignIDs(opts IDOptions) int {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultIDPrefix
	}

	headings := d.headingNodes()
	isHeading := make(map[*html.Node]struct{}, len(headings))
	for _, h := range headings {
		isHeading[h] = struct{}{}
	}

	used := map[string]struct{}{PlaceholderID: {}}
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if _, ok := isHeading[n]; ok {
			return true
		}
		if id := attr(n, "id"); id != "" {
			used[id] = struct{}{}
		}
		return true
	})

	assigned := 0
	missing := make([]bool, len(headings))
	kept := make(map[string]struct{}, len(headings))
	for i, h := range headings {
		id := attr(h, "id")
		if _, dup := kept[id]; id == "" || dup || id == PlaceholderID {
			missing[i] = true
			continue
		}
		if rawAttr(h, "id") != id {
			setAttr(h, "id", id)
			assigned++
		}
		kept[id] = struct{}{}
		used[id] = struct{}{}
	}

	for i, h := range headings {
		if !missing[i] {
			continue
		}
		base := prefix + "-" + strconv.Itoa(i)
		if opts.Slug {
			if s := Slugify(textContent(h)); s != "" {
				base += "-" + s
			}
		}
		id := base
		for n := 2; ; n++ {
			if _, taken := used[id]; !taken {
				break
			}
			id = base + "-" + strconv.Itoa(n)
		}
		used[id] = struct{}{}
		setAttr(h, "id", id)
		assigned++
	}
	return assigned
}

// Slugify lowercases s, strips diacritics and joins alphanumeric runs with
// single hyphens.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var sb strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingDash = false
			sb.WriteRune(r)
			continue
		}
		pendingDash = true
	}

	slug := sb.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(truncateRunes(slug, maxSlugLen), "-")
	}
	return slug
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
