//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(_ *sql.DB) error {
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches query against note bodies and subject slugs with LIKE.
// The snippet is the first body line containing query.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, subject, kind, body
		FROM notes
		WHERE subject LIKE ? OR body LIKE ?
		ORDER BY path
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var body string
		if err := rows.Scan(&r.Path, &r.Subject, &r.Kind, &body); err != nil {
			return nil, err
		}
		r.Snippet = matchingLine(body, query)
		out = append(out, r)
	}
	return out, rows.Err()
}

func matchingLine(body, query string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.Contains(line, query) {
			return strings.TrimSpace(line)
		}
	}
	first, _, _ := strings.Cut(body, "\n")
	return strings.TrimSpace(first)
}
