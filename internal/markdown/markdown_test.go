package markdown

import (
	"strings"
	"testing"
)

func TestToHTML_Headings(t *testing.T) {
	out, err := ToHTML("# Venue\n\nSome text.\n\n## Catering\n")
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	for _, want := range []string{"<h1>Venue</h1>", "<h2>Catering</h2>", "<p>Some text.</p>"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "id=") {
		t.Errorf("headings should not get ids on import:\n%s", out)
	}
}

func TestToHTML_GFMTable(t *testing.T) {
	out, err := ToHTML("| Package | Price |\n| --- | --- |\n| Gold | 900 |\n")
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if !strings.Contains(out, "<table>") || !strings.Contains(out, "<td>Gold</td>") {
		t.Errorf("table not rendered:\n%s", out)
	}
}

func TestToHTML_RawHTMLPassesThrough(t *testing.T) {
	out, err := ToHTML("<div id=\"table-of-contents\"></div>\n\n# Menu\n")
	if err != nil {
		t.Fatalf("ToHTML: %v", err)
	}
	if !strings.Contains(out, `<div id="table-of-contents"></div>`) {
		t.Errorf("placeholder lost:\n%s", out)
	}
}
