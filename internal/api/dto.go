package api

import (
	"github.com/starford/notelinker/internal/index"
	"github.com/starford/notelinker/internal/models"
	"github.com/starford/notelinker/internal/noteservice"
	"github.com/starford/notelinker/internal/parser"
	"github.com/starford/notelinker/internal/regen"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Path    string `json:"path" example:"vocabulary/大変/meaning.md" validate:"required"`
	Content string `json:"content" example:"深刻（しんこく）Serious" validate:"required"`
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content string `json:"content" example:"深刻（しんこく）Serious, Grave" validate:"required"`
}

// TextRequest carries note text evaluated for a subject without touching the vault.
type TextRequest struct {
	Content string         `json:"content" validate:"required"`
	Subject parser.Subject `json:"subject"`
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// LinksResponse is the parsed and rendered form of posted note text.
type LinksResponse struct {
	Groups []parser.Group          `json:"groups" validate:"required"`
	Links  noteservice.LinkSection `json:"links" validate:"required"`
}

// CheckResponse is the regenerated form of posted note text.
type CheckResponse struct {
	NeedsUpdate bool           `json:"needs_update"`
	Content     string         `json:"content"`
	Changes     []regen.Change `json:"changes" validate:"required"`
}

// CopyLineResponse carries the canonical line of a dataset record.
type CopyLineResponse struct {
	Slug string `json:"slug" example:"深刻"`
	Line string `json:"line" example:"深刻（しんこく）Serious, Grave"`
}

// MentionsResponse lists note lines referencing a slug.
type MentionsResponse struct {
	Mentions []models.Mention `json:"mentions" validate:"required"`
}

// RefreshResponse lists notes whose change decision flipped.
type RefreshResponse struct {
	Flipped []string `json:"flipped" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
