//go:build sqlite_fts5

package index

import (
	"testing"
	"time"

	"github.com/starford/vowpost/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents_fts`).Scan(&count); err != nil {
		t.Fatalf("documents_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	row := DocumentRow{
		Path:      "fts.html",
		Title:     "FTS Post",
		Checksum:  "f1",
		Tags:      []string{"search"},
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertDocument(row, "Our barn venue offers powerful full-text search capabilities.", nil); err != nil {
		t.Fatalf("UpsertDocument: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.html" {
		t.Errorf("path = %q", results[0].Path)
	}
	// FTS5 snippet should contain bold markers.
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "gone.html", Checksum: "g", Tags: []string{}, UpdatedAt: time.Now()}, "vanishing content", nil)
	_ = db.DeleteDocument("gone.html")

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.html" {
			t.Error("deleted document still in FTS index")
		}
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertDocument(DocumentRow{Path: "evo.html", Title: "Old", Checksum: "1", Tags: []string{}, UpdatedAt: now}, "original text", nil)
	_ = db.UpsertDocument(DocumentRow{Path: "evo.html", Title: "New", Checksum: "2", Tags: []string{}, UpdatedAt: now}, "replacement text", nil)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}

func TestFTS5_HeadingMatchRanksAboveBody(t *testing.T) {
	db := testDB(t)
	now := time.Now()
	_ = db.UpsertDocument(DocumentRow{Path: "body.html", Title: "Florist", Checksum: "1", UpdatedAt: now},
		"we also do catering on request", nil)
	_ = db.UpsertDocument(DocumentRow{Path: "heading.html", Title: "Venue", Checksum: "2", UpdatedAt: now},
		"menus and more", []models.Heading{{ID: "heading-0", Level: 2, Text: "Catering"}})

	results, err := db.Search("catering", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].Path != "heading.html" {
		t.Errorf("results = %+v", results)
	}
}

func TestFTS5_QuerySyntaxIsQuoted(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertDocument(DocumentRow{Path: "q.html", Title: "Q", Checksum: "1", UpdatedAt: time.Now()},
		"string quartet for the ceremony", nil)

	for _, q := range []string{`quartet"`, `NEAR(`, `cere`, `title:quartet`} {
		if _, err := db.Search(q, 10); err != nil {
			t.Errorf("Search(%q): %v", q, err)
		}
	}
	results, _ := db.Search("cere", 10)
	if len(results) != 1 {
		t.Errorf("prefix search found %d results", len(results))
	}
}
