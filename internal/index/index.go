package index

import (
	"github.com/starford/notelinker/internal/models"
	"github.com/starford/notelinker/internal/vocab"
)

// NoteIndex defines the note and vocabulary indexing operations.
// Consumers should depend on this interface rather than the concrete *DB.
type NoteIndex interface {
	UpsertNote(n NoteRow, body string, entries []EntryRow) error
	DeleteNote(path string) error
	GetChecksum(path string) (string, error)
	GetNote(path string) (*NoteRow, error)
	ListNotes(f ListFilter) ([]NoteRow, int, error)
	SetNeedsUpdate(path string, needsUpdate bool) error
	Bodies() (map[string]string, error)
	Search(query string, limit int) ([]SearchResult, error)
	Mentions(slug string) ([]models.Mention, error)
	AllChecksums() (map[string]string, error)

	UpsertVocab(records []vocab.Record) error
	GetVocab(slug string) (*vocab.Record, error)
	Lookup(slugs []string) (vocab.Map, error)
	VocabCount() (int, error)

	Close() error
}

// Verify *DB satisfies NoteIndex at compile time.
var _ NoteIndex = (*DB)(nil)
