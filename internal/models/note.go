// Package models defines the domain types for notelinker.
package models

import (
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/notelinker/internal/parser"
)

// NoteKind is the section of a subject page a note belongs to.
type NoteKind string

const (
	KindMeaning NoteKind = "meaning"
	KindReading NoteKind = "reading"
)

// Subject types with a page of their own.
const (
	SubjectVocabulary = "vocabulary"
	SubjectKanji      = "kanji"
)

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string         `json:"path"`
	Subject   parser.Subject `json:"subject"`
	Kind      NoteKind       `json:"kind,omitempty"`
	Checksum  string         `json:"checksum"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Mention records that a note line references a slug.
type Mention struct {
	Path      string `json:"path"`
	LineIndex int    `json:"line_index"`
	Slug      string `json:"slug"`
}

// SubjectFromPath derives the subject and note kind from a vault path laid
// out as <type>/<slug>/<kind>.md. Other layouts yield a zero subject.
func SubjectFromPath(p string) (parser.Subject, NoteKind) {
	parts := strings.Split(filepath.ToSlash(p), "/")
	if len(parts) != 3 {
		return parser.Subject{}, ""
	}
	typ, slug, file := parts[0], parts[1], parts[2]
	if typ != SubjectVocabulary && typ != SubjectKanji {
		return parser.Subject{}, ""
	}
	kind := NoteKind(strings.TrimSuffix(file, ".md"))
	if kind != KindMeaning && kind != KindReading {
		return parser.Subject{}, ""
	}
	return parser.Subject{Type: typ, Slug: slug}, kind
}

// NotePath returns the vault path of the kind note of subject.
func NotePath(subject parser.Subject, kind NoteKind) string {
	return path.Join(subject.Type, subject.Slug, string(kind)+".md")
}
