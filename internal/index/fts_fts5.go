//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/vowpost/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			path UNINDEXED,
			title,
			headings,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, d DocumentRow, text string, headings []models.Heading) error {
	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	_, err := tx.Exec(`INSERT INTO documents_fts (path, title, headings, body, tags) VALUES (?, ?, ?, ?, ?)`,
		d.Path, d.Title, headingText(headings), text, strings.Join(d.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) error {
	_, err := tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path)
	return err
}

// Search performs an FTS5 full-text search. Title matches rank above heading
// matches, which rank above body and tag matches.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       title,
		       snippet(documents_fts, 3, '<b>', '</b>', '...', 32)
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY bm25(documents_fts, 0.0, 10.0, 5.0, 1.0, 2.0)
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ftsQuery quotes every term so user input never reaches the FTS5 query
// syntax; the last term matches as a prefix.
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	terms[len(terms)-1] += "*"
	return strings.Join(terms, " ")
}

func headingText(headings []models.Heading) string {
	parts := make([]string, len(headings))
	for i, h := range headings {
		parts[i] = h.Text
	}
	return strings.Join(parts, "\n")
}
