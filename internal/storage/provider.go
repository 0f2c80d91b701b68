// Package storage defines the study note vault abstraction.
package storage

import "github.com/starford/notelinker/internal/models"

// NoteExt is the file extension of vault notes.
const NoteExt = ".md"

// Provider is the interface for vault note operations. Paths are relative to
// the vault root and use forward slashes.
type Provider interface {
	// List returns metadata for every note under dir.
	List(dir string) ([]models.NoteMetadata, error)
	// Read returns the raw note text at path.
	Read(path string) ([]byte, error)
	// Write atomically replaces the note at path.
	Write(path string, content []byte) error
	// Delete removes the note at path.
	Delete(path string) error
	// Root returns the absolute vault directory.
	Root() string
}
