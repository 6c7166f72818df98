package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Sanitize removes active content from the document: script-bearing and
// embedding elements, on* event handler attributes and javascript: URLs.
// It reports how many elements and attributes were dropped.
func (d *Document) Sanitize() int {
	var doomed []*html.Node
	removed := 0
	walk(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		switch n.DataAtom {
		case atom.Script, atom.Iframe, atom.Frame, atom.Object, atom.Embed, atom.Base:
			doomed = append(doomed, n)
			return false
		}
		kept := n.Attr[:0]
		for _, a := range n.Attr {
			if unsafeAttr(a) {
				removed++
				continue
			}
			kept = append(kept, a)
		}
		n.Attr = kept
		return true
	})
	for _, n := range doomed {
		n.Parent.RemoveChild(n)
	}
	return removed + len(doomed)
}

func unsafeAttr(a html.Attribute) bool {
	key := strings.ToLower(a.Key)
	if strings.HasPrefix(key, "on") {
		return true
	}
	switch key {
	case "srcdoc":
		return true
	case "href", "src", "action", "formaction", "xlink:href":
		return scriptURL(a.Val)
	}
	return false
}

// scriptURL reports whether v uses the javascript: or vbscript: scheme once
// the whitespace and control characters browsers ignore are removed.
func scriptURL(v string) bool {
	var sb strings.Builder
	for _, r := range v {
		if r <= ' ' {
			continue
		}
		sb.WriteRune(r)
	}
	s := strings.ToLower(sb.String())
	return strings.HasPrefix(s, "javascript:") || strings.HasPrefix(s, "vbscript:")
}
