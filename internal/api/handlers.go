package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notelinker/internal/noteservice"
	"github.com/starford/notelinker/internal/parser"
	"github.com/starford/notelinker/internal/vocab"
)

const (
	maxNoteBody    = 10 << 20
	maxDatasetBody = 64 << 20
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the wildcard part of the URL.
// Supports encoded slashes from OpenAPI clients (e.g. vocabulary%2F大変%2Fmeaning.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// slugParam returns the decoded {slug} URL parameter.
func slugParam(r *http.Request) string {
	raw := chi.URLParam(r, "slug")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes with optional pagination and filtering
//	@Tags			notes
//	@Produce		json
//	@Param			limit			query		int		false	"Page size"
//	@Param			offset			query		int		false	"Page offset"
//	@Param			subject			query		string	false	"Filter by subject slug"
//	@Param			needs_update	query		bool	false	"Only notes out of date with the dataset"
//	@Param			sort			query		string	false	"Sort field"	Enums(path, updated_at, subject)
//	@Success		200				{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	needsUpdate, _ := strconv.ParseBool(q.Get("needs_update"))

	items, total, err := h.svc.ListNotes(r.Context(), noteservice.ListQuery{
		Limit:       limit,
		Offset:      offset,
		Subject:     q.Get("subject"),
		NeedsUpdate: needsUpdate,
		Sort:        q.Get("sort"),
	})
	if err != nil {
		writeServiceError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/*.
//
//	@Summary		Get a note with its groups, link section and change decision
//	@Tags			notes
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	NoteDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	note, err := h.svc.GetNote(r.Context(), path)
	if err != nil {
		writeServiceError(w, "get note", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteBody)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path and content are required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req.Path, []byte(req.Content))
	if err != nil {
		writeServiceError(w, "create note", err, slog.String("path", req.Path))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/*.
//
//	@Summary		Update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Note path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	UpdateNoteRequest	true	"Updated content"
//	@Success		200		{object}	NoteDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [put]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteBody)
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}

	var req UpdateNoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}

	note, err := h.svc.UpdateNote(r.Context(), path, []byte(req.Content), r.Header.Get("If-Match"))
	if err != nil {
		writeServiceError(w, "update note", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/*.
//
//	@Summary		Delete a note
//	@Tags			notes
//	@Param			path	path	string	true	"Note path"
//	@Success		204		"Note deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{path} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	if err := h.svc.DeleteNote(r.Context(), path); err != nil {
		writeServiceError(w, "delete note", err, slog.String("path", path))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PreviewUpdate handles GET /api/update/*.
//
//	@Summary		Preview regenerating a note from the dataset
//	@Tags			update
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	noteservice.UpdatePreview
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/update/{path} [get]
func (h *Handler) PreviewUpdate(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	preview, err := h.svc.PreviewUpdate(r.Context(), path)
	if err != nil {
		writeServiceError(w, "preview update", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// ApplyUpdate handles POST /api/update/*.
//
//	@Summary		Regenerate a note from the dataset and save it
//	@Tags			update
//	@Produce		json
//	@Param			path		path	string	true	"Note path"
//	@Param			If-Match	header	string	false	"SHA-256 checksum of the note being regenerated"
//	@Success		200		{object}	noteservice.UpdateResult
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/update/{path} [post]
func (h *Handler) ApplyUpdate(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.ApplyUpdate(r.Context(), path, r.Header.Get("If-Match"))
	if err != nil {
		writeServiceError(w, "apply update", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Refresh handles POST /api/refresh.
//
//	@Summary		Recompute the change decision of every note
//	@Tags			update
//	@Produce		json
//	@Success		200	{object}	RefreshResponse
//	@Security		BearerAuth
//	@Router			/refresh [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	flipped, err := h.svc.RefreshAll(r.Context())
	if err != nil {
		writeServiceError(w, "refresh", err)
		return
	}
	if flipped == nil {
		flipped = []string{}
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Flipped: flipped})
}

// Preview handles GET /api/preview/*.
//
//	@Summary		Render a note as HTML with its link section
//	@Tags			notes
//	@Produce		html
//	@Param			path	path	string	true	"Note path"
//	@Success		200		{string}	string	"HTML fragment"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview/{path} [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	out, err := h.svc.Preview(r.Context(), path)
	if err != nil {
		writeServiceError(w, "preview", err, slog.String("path", path))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out)
}

func decodeText(w http.ResponseWriter, r *http.Request) (*TextRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxNoteBody)
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return nil, false
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return nil, false
	}
	return &req, true
}

// Links handles POST /api/links.
//
//	@Summary		Parse note text and render its link section
//	@Tags			engine
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TextRequest	true	"Note text and current subject"
//	@Success		200		{object}	LinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links [post]
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeText(w, r)
	if !ok {
		return
	}
	groups, section := h.svc.Links(req.Content, req.Subject)
	if groups == nil {
		groups = []parser.Group{}
	}
	writeJSON(w, http.StatusOK, LinksResponse{Groups: groups, Links: section})
}

// Check handles POST /api/check.
//
//	@Summary		Regenerate note text against the dataset without saving
//	@Tags			engine
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TextRequest	true	"Note text and current subject"
//	@Success		200		{object}	CheckResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/check [post]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeText(w, r)
	if !ok {
		return
	}
	updated, changes := h.svc.Check(req.Content, req.Subject)
	writeJSON(w, http.StatusOK, CheckResponse{
		NeedsUpdate: updated != req.Content,
		Content:     updated,
		Changes:     changes,
	})
}

// ImportVocab handles POST /api/vocab.
//
//	@Summary		Import vocabulary records (JSON or YAML)
//	@Tags			vocab
//	@Accept			json
//	@Produce		json
//	@Param			body	body		[]vocab.Record	true	"Dataset records"
//	@Success		200		{object}	noteservice.ImportResult
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vocab [post]
func (h *Handler) ImportVocab(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDatasetBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read body"))
		return
	}
	records, err := vocab.Decode(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.ImportVocab(r.Context(), records)
	if err != nil {
		writeServiceError(w, "import vocab", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetVocab handles GET /api/vocab/{slug}.
//
//	@Summary		Get a vocabulary record
//	@Tags			vocab
//	@Produce		json
//	@Param			slug	path		string	true	"Vocabulary slug"
//	@Success		200		{object}	vocab.Record
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vocab/{slug} [get]
func (h *Handler) GetVocab(w http.ResponseWriter, r *http.Request) {
	slug := slugParam(r)
	rec, err := h.svc.GetVocab(r.Context(), slug)
	if err != nil {
		writeServiceError(w, "get vocab", err, slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CopyLine handles GET /api/vocab/{slug}/line.
//
//	@Summary		Canonical note line for a vocabulary record
//	@Tags			vocab
//	@Produce		json
//	@Param			slug	path		string	true	"Vocabulary slug"
//	@Success		200		{object}	CopyLineResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/vocab/{slug}/line [get]
func (h *Handler) CopyLine(w http.ResponseWriter, r *http.Request) {
	slug := slugParam(r)
	line, err := h.svc.CopyLine(r.Context(), slug)
	if err != nil {
		writeServiceError(w, "copy line", err, slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, CopyLineResponse{Slug: slug, Line: line})
}

// Mentions handles GET /api/mentions/{slug}.
//
//	@Summary		Notes lines referencing a slug
//	@Tags			vocab
//	@Produce		json
//	@Param			slug	path		string	true	"Vocabulary slug"
//	@Success		200		{object}	MentionsResponse
//	@Security		BearerAuth
//	@Router			/mentions/{slug} [get]
func (h *Handler) Mentions(w http.ResponseWriter, r *http.Request) {
	slug := slugParam(r)
	m, err := h.svc.Mentions(r.Context(), slug)
	if err != nil {
		writeServiceError(w, "mentions", err, slog.String("slug", slug))
		return
	}
	writeJSON(w, http.StatusOK, MentionsResponse{Mentions: m})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
