package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/vocab"
)

// lookupBatch bounds the number of bound parameters per lookup query.
const lookupBatch = 500

// UpsertVocab inserts or replaces dataset records in one transaction.
func (db *DB) UpsertVocab(records []vocab.Record) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO vocabulary (slug, readings, meanings, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			readings   = excluded.readings,
			meanings   = excluded.meanings,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("index: prepare vocab upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, r := range records {
		readings, err := json.Marshal(nonNil(r.Readings))
		if err != nil {
			return fmt.Errorf("index: encode readings: %w", err)
		}
		meanings, err := json.Marshal(nonNil(r.Meanings))
		if err != nil {
			return fmt.Errorf("index: encode meanings: %w", err)
		}
		if _, err := stmt.Exec(r.Slug, string(readings), string(meanings), now); err != nil {
			return fmt.Errorf("index: upsert vocab %q: %w", r.Slug, err)
		}
	}
	return tx.Commit()
}

// GetVocab returns the dataset record for slug or apperr.ErrNotFound.
func (db *DB) GetVocab(slug string) (*vocab.Record, error) {
	var readings, meanings string
	err := db.conn.QueryRow(`SELECT readings, meanings FROM vocabulary WHERE slug = ?`, slug).Scan(&readings, &meanings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get vocab: %w", err)
	}
	return decodeRecord(slug, readings, meanings)
}

// Lookup returns a snapshot of the records for slugs. Unknown slugs are
// simply absent from the result.
func (db *DB) Lookup(slugs []string) (vocab.Map, error) {
	out := make(vocab.Map, len(slugs))
	uniq := dedupe(slugs)

	for start := 0; start < len(uniq); start += lookupBatch {
		end := min(start+lookupBatch, len(uniq))
		batch := uniq[start:end]

		args := make([]any, len(batch))
		for i, s := range batch {
			args[i] = s
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

		rows, err := db.conn.Query(`SELECT slug, readings, meanings FROM vocabulary WHERE slug IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("index: lookup: %w", err)
		}
		for rows.Next() {
			var slug, readings, meanings string
			if err := rows.Scan(&slug, &readings, &meanings); err != nil {
				rows.Close()
				return nil, err
			}
			rec, err := decodeRecord(slug, readings, meanings)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[slug] = rec
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// VocabCount returns the number of dataset records.
func (db *DB) VocabCount() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM vocabulary`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: vocab count: %w", err)
	}
	return n, nil
}

func decodeRecord(slug, readings, meanings string) (*vocab.Record, error) {
	rec := &vocab.Record{Slug: slug}
	if err := json.Unmarshal([]byte(readings), &rec.Readings); err != nil {
		return nil, fmt.Errorf("index: decode readings of %q: %w", slug, err)
	}
	if err := json.Unmarshal([]byte(meanings), &rec.Meanings); err != nil {
		return nil, fmt.Errorf("index: decode meanings of %q: %w", slug, err)
	}
	return rec, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
