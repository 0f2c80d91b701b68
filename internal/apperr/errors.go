// Package apperr holds sentinel errors shared by the service, API and MCP layers.
package apperr

import "errors"

var (
	// ErrNotFound reports a missing note or vocabulary record.
	ErrNotFound = errors.New("not found")
	// ErrConflict reports an If-Match checksum that no longer matches the note.
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput reports a malformed path, note or dataset record.
	ErrInvalidInput = errors.New("invalid input")
)
