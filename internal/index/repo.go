package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/models"
	"github.com/starford/notelinker/internal/parser"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path        string
	Subject     parser.Subject
	Kind        models.NoteKind
	Checksum    string
	GroupCount  int
	EntryCount  int
	NeedsUpdate bool
	UpdatedAt   time.Time
}

// EntryRow is one parsed entry line of a note.
type EntryRow struct {
	LineIndex   int
	Slug        string
	Metadata    string
	Meanings    string
	NotIncluded bool
	Override    bool
}

// ListFilter selects and orders notes.
type ListFilter struct {
	Limit       int
	Offset      int
	Subject     string
	NeedsUpdate bool
	// Sort is one of "path", "updated_at", "subject". Defaults to "path".
	Sort string
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Subject string `json:"subject"`
	Kind    string `json:"kind"`
	Snippet string `json:"snippet"`
}

const noteColumns = `path, subject_type, subject, kind, checksum, group_count, entry_count, needs_update, updated_at`

// UpsertNote replaces a note, its FTS entry and its entry rows within a transaction.
func (db *DB) UpsertNote(n NoteRow, body string, entries []EntryRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now()
	}

	_, err = tx.Exec(`
		INSERT INTO notes (path, subject_type, subject, kind, checksum, body, group_count, entry_count, needs_update, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			subject_type = excluded.subject_type,
			subject      = excluded.subject,
			kind         = excluded.kind,
			checksum     = excluded.checksum,
			body         = excluded.body,
			group_count  = excluded.group_count,
			entry_count  = excluded.entry_count,
			needs_update = excluded.needs_update,
			updated_at   = excluded.updated_at
	`, n.Path, n.Subject.Type, n.Subject.Slug, string(n.Kind), n.Checksum, body,
		n.GroupCount, n.EntryCount, n.NeedsUpdate, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, n.Path, n.Subject.Slug, body); err != nil {
		return err
	}

	if _, err := tx.Exec(`DELETE FROM entries WHERE path = ?`, n.Path); err != nil {
		return fmt.Errorf("index: clear entries: %w", err)
	}
	if len(entries) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO entries (path, line_index, slug, metadata, meanings, not_included, override)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare entry insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.Exec(n.Path, e.LineIndex, e.Slug, e.Metadata, e.Meanings, e.NotIncluded, e.Override); err != nil {
				return fmt.Errorf("index: insert entry: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteNote removes a note, its FTS entry and its entry rows.
func (db *DB) DeleteNote(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM entries WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete entries: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a note, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM notes WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetNote returns the indexed row for path or apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE path = ?`, path)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	return n, nil
}

// ListNotes returns a page of notes matching f and the total match count.
func (db *DB) ListNotes(f ListFilter) ([]NoteRow, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	order := "path"
	switch f.Sort {
	case "updated_at":
		order = "updated_at DESC, path"
	case "subject":
		order = "subject, path"
	}

	where := "WHERE 1=1"
	var args []any
	if f.Subject != "" {
		where += " AND subject = ?"
		args = append(args, f.Subject)
	}
	if f.NeedsUpdate {
		where += " AND needs_update = 1"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+noteColumns+` FROM notes `+where+` ORDER BY `+order+` LIMIT ? OFFSET ?`,
		append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}

// SetNeedsUpdate stores the change decision of a note.
func (db *DB) SetNeedsUpdate(path string, needsUpdate bool) error {
	if _, err := db.conn.Exec(`UPDATE notes SET needs_update = ? WHERE path = ?`, needsUpdate, path); err != nil {
		return fmt.Errorf("index: set needs_update: %w", err)
	}
	return nil
}

// Bodies returns the indexed text of every note keyed by path.
func (db *DB) Bodies() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, body FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: bodies: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, b string
		if err := rows.Scan(&p, &b); err != nil {
			return nil, err
		}
		out[p] = b
	}
	return out, rows.Err()
}

// AllChecksums returns the checksum of every indexed note keyed by path.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
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

// Mentions returns every entry line referencing slug across notes.
func (db *DB) Mentions(slug string) ([]models.Mention, error) {
	rows, err := db.conn.Query(`SELECT path, line_index, slug FROM entries WHERE slug = ? ORDER BY path, line_index`, slug)
	if err != nil {
		return nil, fmt.Errorf("index: mentions: %w", err)
	}
	defer rows.Close()

	var out []models.Mention
	for rows.Next() {
		var m models.Mention
		if err := rows.Scan(&m.Path, &m.LineIndex, &m.Slug); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*NoteRow, error) {
	var n NoteRow
	var kind string
	if err := s.Scan(&n.Path, &n.Subject.Type, &n.Subject.Slug, &kind, &n.Checksum,
		&n.GroupCount, &n.EntryCount, &n.NeedsUpdate, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.Kind = models.NoteKind(kind)
	return &n, nil
}
