package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/vowpost/internal/models"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path         string
	Title        string
	Checksum     string
	Tags         []string
	HeadingCount int
	UpdatedAt    time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Title   string
	Snippet string
}

// HeadingHit is a heading matched by SearchHeadings.
type HeadingHit struct {
	Path    string
	Title   string
	Heading models.Heading
}

// UpsertDocument inserts or replaces a document, its FTS entry and its
// headings within a transaction.
func (db *DB) UpsertDocument(d DocumentRow, text string, headings []models.Heading) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if d.Tags == nil {
		d.Tags = []string{}
	}
	tagsJSON, _ := json.Marshal(d.Tags)

	// The plain text is kept for the LIKE fallback search.
	_, err = tx.Exec(`
		INSERT INTO documents (path, title, checksum, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, d.Path, d.Title, d.Checksum, string(tagsJSON), text, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, d, text, headings); err != nil {
		return err
	}

	// Headings are rebuilt wholesale.
	if _, err := tx.Exec(`DELETE FROM headings WHERE path = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear headings: %w", err)
	}
	if len(headings) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO headings (path, ordinal, anchor, level, text) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare heading insert: %w", err)
		}
		defer stmt.Close()
		for i, h := range headings {
			if _, err := stmt.Exec(d.Path, i, h.ID, h.Level, h.Text); err != nil {
				return fmt.Errorf("index: insert heading: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry and its headings.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	// Headings go with the document through ON DELETE CASCADE.
	if _, err := tx.Exec(`DELETE FROM documents WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if
// not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// GetDocument returns the indexed row for path, or nil if it is not indexed.
func (db *DB) GetDocument(path string) (*DocumentRow, error) {
	rows, err := db.queryDocuments(`WHERE d.path = ?`, path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// ListDocuments returns a page of documents and the total number matching.
// tag filters on an exact tag; sort is "title" or "updated" (newest first,
// the default).
func (db *DB) ListDocuments(limit, offset int, tag, sort string) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var where string
	var args []any
	if tag != "" {
		tagJSON, _ := json.Marshal(tag)
		where = `WHERE d.tags LIKE ?`
		args = append(args, "%"+string(tagJSON)+"%")
	}

	var total int
	countSQL := `SELECT count(*) FROM documents d ` + where
	if err := db.conn.QueryRow(countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	order := `ORDER BY d.updated_at DESC, d.path`
	if sort == "title" {
		order = `ORDER BY d.title COLLATE NOCASE, d.path`
	}
	rows, err := db.queryDocuments(where+" "+order+" LIMIT ? OFFSET ?", append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (db *DB) queryDocuments(tail string, args ...any) ([]DocumentRow, error) {
	rows, err := db.conn.Query(`
		SELECT d.path, d.title, d.checksum, d.tags, d.updated_at,
		       (SELECT count(*) FROM headings h WHERE h.path = d.path)
		FROM documents d `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var r DocumentRow
		var tags string
		if err := rows.Scan(&r.Path, &r.Title, &r.Checksum, &tags, &r.UpdatedAt, &r.HeadingCount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			r.Tags = nil
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Headings returns the indexed headings of a document in document order.
func (db *DB) Headings(path string) ([]models.Heading, error) {
	rows, err := db.conn.Query(`
		SELECT anchor, level, text FROM headings
		WHERE path = ?
		ORDER BY ordinal
	`, path)
	if err != nil {
		return nil, fmt.Errorf("index: headings: %w", err)
	}
	defer rows.Close()

	out := []models.Heading{}
	for rows.Next() {
		var h models.Heading
		if err := rows.Scan(&h.ID, &h.Level, &h.Text); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// SearchHeadings finds headings whose text contains query, case-insensitively
// for ASCII.
func (db *DB) SearchHeadings(query string, limit int) ([]HeadingHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT h.path, d.title, h.anchor, h.level, h.text
		FROM headings h JOIN documents d ON d.path = h.path
		WHERE h.text LIKE ? ESCAPE '\'
		ORDER BY h.path, h.ordinal
		LIMIT ?
	`, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("index: search headings: %w", err)
	}
	defer rows.Close()

	var out []HeadingHit
	for rows.Next() {
		var hit HeadingHit
		if err := rows.Scan(&hit.Path, &hit.Title, &hit.Heading.ID, &hit.Heading.Level, &hit.Heading.Text); err != nil {
			return nil, err
		}
		out = append(out, hit)
	}
	return out, rows.Err()
}

// AllPaths returns every indexed document path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns the stored checksum of every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// HasAnchor reports whether the indexed document has a heading with the
// given id.
func (db *DB) HasAnchor(path, anchor string) (bool, error) {
	var n int
	err := db.conn.QueryRow(`SELECT 1 FROM headings WHERE path = ? AND anchor = ? LIMIT 1`, path, anchor).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("index: has anchor: %w", err)
	}
	return true, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
