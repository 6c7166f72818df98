//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/starford/vowpost/internal/models"
)

const snippetRadius = 80

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE on documents and headings.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ DocumentRow, _ string, _ []models.Heading) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled
// in). Posts whose title or headings match come first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := db.conn.Query(`
		SELECT d.path, d.title, d.body,
		       (d.title LIKE ?1 ESCAPE '\'
		        OR EXISTS (SELECT 1 FROM headings h WHERE h.path = d.path AND h.text LIKE ?1 ESCAPE '\')) AS strong
		FROM documents d
		WHERE d.title LIKE ?1 ESCAPE '\'
		   OR d.body LIKE ?1 ESCAPE '\'
		   OR d.tags LIKE ?1 ESCAPE '\'
		ORDER BY strong DESC, d.updated_at DESC
		LIMIT ?2
	`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var body string
		var strong bool
		if err := rows.Scan(&r.Path, &r.Title, &body, &strong); err != nil {
			return nil, err
		}
		r.Snippet = snippetAround(body, query, snippetRadius)
		out = append(out, r)
	}
	return out, rows.Err()
}

// snippetAround cuts text to about radius bytes on each side of the first
// case-insensitive match of query, marking trimmed ends with "...". Without
// a match the start of text is returned.
func snippetAround(text, query string, radius int) string {
	at := strings.Index(strings.ToLower(text), strings.ToLower(query))
	if at < 0 {
		at = 0
	}
	at = min(at, len(text))
	start := max(at-radius, 0)
	end := min(at+len(query)+radius, len(text))
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	s := strings.TrimSpace(text[start:end])
	if start > 0 {
		s = "..." + s
	}
	if end < len(text) {
		s += "..."
	}
	return s
}
