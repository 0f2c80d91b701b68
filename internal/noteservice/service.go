// Package noteservice coordinates the vault, the index and the note engine.
package noteservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/checksum"
	"github.com/starford/notelinker/internal/index"
	"github.com/starford/notelinker/internal/links"
	"github.com/starford/notelinker/internal/models"
	"github.com/starford/notelinker/internal/parser"
	"github.com/starford/notelinker/internal/regen"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vocab"
)

// Note change kinds reported to a ChangeFunc.
const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

// ChangeFunc is notified after the service mutates a note.
type ChangeFunc func(kind, path string, needsUpdate bool)

// ImportFunc is notified after a dataset import completes.
type ImportFunc func(res ImportResult)

// LinkSection is the rendered navigation section of a note.
type LinkSection struct {
	HTML  string `json:"html"`
	Plain string `json:"plain"`
}

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	Path        string           `json:"path"`
	Subject     parser.Subject   `json:"subject"`
	Kind        models.NoteKind  `json:"kind,omitempty"`
	Content     string           `json:"content"`
	Checksum    string           `json:"checksum"`
	Groups      []parser.Group   `json:"groups"`
	Links       LinkSection      `json:"links"`
	NeedsUpdate bool             `json:"needs_update"`
	Mentions    []models.Mention `json:"mentions"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path        string          `json:"path"`
	Subject     parser.Subject  `json:"subject"`
	Kind        models.NoteKind `json:"kind,omitempty"`
	Checksum    string          `json:"checksum"`
	GroupCount  int             `json:"group_count"`
	EntryCount  int             `json:"entry_count"`
	NeedsUpdate bool            `json:"needs_update"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ListQuery selects notes for ListNotes.
type ListQuery struct {
	Limit       int
	Offset      int
	Subject     string
	NeedsUpdate bool
	Sort        string
}

// UpdatePreview describes what regenerating a note would change.
type UpdatePreview struct {
	Path        string         `json:"path"`
	Checksum    string         `json:"checksum"`
	NeedsUpdate bool           `json:"needs_update"`
	Content     string         `json:"content"`
	Changes     []regen.Change `json:"changes"`
}

// UpdateResult is returned by ApplyUpdate.
type UpdateResult struct {
	Path     string         `json:"path"`
	Applied  bool           `json:"applied"`
	Checksum string         `json:"checksum"`
	Changes  []regen.Change `json:"changes"`
}

// ImportResult is returned by ImportVocab.
type ImportResult struct {
	Records int      `json:"records"`
	Flipped []string `json:"flipped"`
}

// Service coordinates storage and index operations.
type Service struct {
	store    storage.Provider
	db       *index.DB
	ix       *index.Indexer
	md       goldmark.Markdown
	onChange ChangeFunc
	onImport ImportFunc
	logger   *slog.Logger
}

// NewService creates a new note service.
func NewService(store storage.Provider, db *index.DB, ix *index.Indexer) *Service {
	return &Service{
		store:  store,
		db:     db,
		ix:     ix,
		md:     goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps())),
		logger: slog.Default(),
	}
}

// OnChange registers fn to be called after every note mutation.
func (s *Service) OnChange(fn ChangeFunc) {
	s.onChange = fn
}

// OnImport registers fn to be called after every successful ImportVocab.
func (s *Service) OnImport(fn ImportFunc) {
	s.onImport = fn
}

func (s *Service) notify(kind, path string, needsUpdate bool) {
	if s.onChange != nil {
		s.onChange(kind, path, needsUpdate)
	}
}

func (s *Service) read(path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// GetNote reads a note and enriches it with its groups, link section, change
// decision and the mentions of its subject.
func (s *Service) GetNote(_ context.Context, path string) (*NoteDetail, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(path, data)
}

// CreateNote writes a new note and indexes it.
func (s *Service) CreateNote(_ context.Context, path string, content []byte) (*NoteDetail, error) {
	if !storage.IsNote(path) {
		return nil, fmt.Errorf("%w: notes must have the %s extension", apperr.ErrInvalidInput, storage.NoteExt)
	}
	if _, err := s.store.Read(path); err == nil {
		return nil, apperr.ErrAlreadyExists
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	row, err := s.ix.IndexFile(path, content)
	if err != nil {
		return nil, err
	}
	s.notify(ChangeCreated, path, row.NeedsUpdate)
	return s.buildNoteDetail(path, content)
}

// UpdateNote writes updated content with optimistic concurrency.
func (s *Service) UpdateNote(_ context.Context, path string, content []byte, ifMatch string) (*NoteDetail, error) {
	existing, err := s.read(path)
	if err != nil {
		return nil, err
	}
	if !checksum.Matches(existing, ifMatch) {
		return nil, apperr.ErrConflict
	}
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	row, err := s.ix.IndexFile(path, content)
	if err != nil {
		return nil, err
	}
	s.notify(ChangeUpdated, path, row.NeedsUpdate)
	return s.buildNoteDetail(path, content)
}

// DeleteNote removes a note from storage and index.
func (s *Service) DeleteNote(_ context.Context, path string) error {
	if err := s.store.Delete(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return err
	}
	if err := s.db.DeleteNote(path); err != nil {
		return err
	}
	s.notify(ChangeDeleted, path, false)
	return nil
}

// ListNotes returns a page of indexed notes and the total match count.
func (s *Service) ListNotes(_ context.Context, q ListQuery) ([]NoteListItem, int, error) {
	rows, total, err := s.db.ListNotes(index.ListFilter{
		Limit:       q.Limit,
		Offset:      q.Offset,
		Subject:     q.Subject,
		NeedsUpdate: q.NeedsUpdate,
		Sort:        q.Sort,
	})
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(rows))
	for i, r := range rows {
		items[i] = NoteListItem{
			Path:        r.Path,
			Subject:     r.Subject,
			Kind:        r.Kind,
			Checksum:    r.Checksum,
			GroupCount:  r.GroupCount,
			EntryCount:  r.EntryCount,
			NeedsUpdate: r.NeedsUpdate,
			UpdatedAt:   r.UpdatedAt,
		}
	}
	return items, total, nil
}

// PreviewUpdate regenerates a stored note without writing it.
func (s *Service) PreviewUpdate(_ context.Context, path string) (*UpdatePreview, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	opts := s.regenOptions(path)
	lookup := s.ix.LookupFor(parser.ParseGroups(text, opts.Parser))
	changes := regen.Diff(text, lookup, opts)
	return &UpdatePreview{
		Path:        path,
		Checksum:    checksum.Sum(data),
		NeedsUpdate: len(changes) > 0,
		Content:     regen.Regenerate(text, lookup, opts),
		Changes:     nonNilSlice(changes),
	}, nil
}

// ApplyUpdate regenerates a stored note and writes it back when it changed.
// A non-empty ifMatch must equal the checksum of the stored note.
func (s *Service) ApplyUpdate(ctx context.Context, path, ifMatch string) (*UpdateResult, error) {
	preview, err := s.PreviewUpdate(ctx, path)
	if err != nil {
		return nil, err
	}
	if !checksum.MatchesSum(preview.Checksum, ifMatch) {
		return nil, apperr.ErrConflict
	}
	res := &UpdateResult{Path: path, Checksum: preview.Checksum, Changes: preview.Changes}
	if !preview.NeedsUpdate {
		return res, nil
	}

	content := []byte(preview.Content)
	if err := s.store.Write(path, content); err != nil {
		return nil, err
	}
	row, err := s.ix.IndexFile(path, content)
	if err != nil {
		return nil, err
	}
	res.Applied = true
	res.Checksum = row.Checksum
	s.logger.Info("note regenerated", slog.String("path", path), slog.Int("changes", len(res.Changes)))
	s.notify(ChangeUpdated, path, row.NeedsUpdate)
	return res, nil
}

// Links renders the link section of note text for subject.
func (s *Service) Links(note string, subject parser.Subject) ([]parser.Group, LinkSection) {
	popts := s.ix.Options().Parser.WithSubject(subject)
	groups := parser.ParseGroups(note, popts)
	decorated := links.Decorate(groups, popts)
	delim := popts.Delimiter
	if delim == "" {
		delim = parser.DefaultDelimiter
	}
	return groups, LinkSection{
		HTML:  links.Render(decorated, links.HTML{}, delim),
		Plain: links.Render(decorated, links.Plain{}, delim),
	}
}

// Check regenerates note text for subject against the stored dataset without
// touching the vault.
func (s *Service) Check(note string, subject parser.Subject) (string, []regen.Change) {
	opts := s.ix.Options()
	opts.Parser = opts.Parser.WithSubject(subject)
	lookup := s.ix.LookupFor(parser.ParseGroups(note, opts.Parser))
	return regen.Regenerate(note, lookup, opts), nonNilSlice(regen.Diff(note, lookup, opts))
}

// Preview renders a stored note as HTML followed by its link section.
func (s *Service) Preview(_ context.Context, path string) (string, error) {
	data, err := s.read(path)
	if err != nil {
		return "", err
	}
	subject, _ := models.SubjectFromPath(path)
	_, section := s.Links(string(data), subject)

	var b bytes.Buffer
	if err := s.md.Convert(data, &b); err != nil {
		return "", fmt.Errorf("noteservice: render %s: %w", path, err)
	}
	if section.HTML != "" {
		b.WriteString(`<div class="notelinker-links">`)
		b.WriteString(section.HTML)
		b.WriteString("</div>\n")
	}
	return b.String(), nil
}

// GetVocab returns the dataset record for slug.
func (s *Service) GetVocab(_ context.Context, slug string) (*vocab.Record, error) {
	return s.db.GetVocab(slug)
}

// CopyLine returns the canonical line of the dataset record for slug.
func (s *Service) CopyLine(ctx context.Context, slug string) (string, error) {
	rec, err := s.GetVocab(ctx, slug)
	if err != nil {
		return "", err
	}
	return regen.CopyLine(rec, s.ix.Options().MeaningSeparator), nil
}

// ImportVocab validates and stores dataset records, then recomputes the
// change decision of every indexed note.
func (s *Service) ImportVocab(ctx context.Context, records []vocab.Record) (*ImportResult, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records", apperr.ErrInvalidInput)
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", apperr.ErrInvalidInput, i, err)
		}
	}
	if err := s.db.UpsertVocab(records); err != nil {
		return nil, err
	}
	flipped, err := s.RefreshAll(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("vocabulary imported", slog.Int("records", len(records)), slog.Int("flipped", len(flipped)))
	res := ImportResult{Records: len(records), Flipped: nonNilSlice(flipped)}
	if s.onImport != nil {
		s.onImport(res)
	}
	return &res, nil
}

// RefreshAll recomputes every stored change decision and reports the notes
// whose decision flipped.
func (s *Service) RefreshAll(ctx context.Context) ([]string, error) {
	flipped, err := s.ix.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range flipped {
		n, err := s.db.GetNote(p)
		if err != nil {
			continue
		}
		s.notify(ChangeUpdated, p, n.NeedsUpdate)
	}
	return flipped, nil
}

// Mentions returns the note lines referencing slug.
func (s *Service) Mentions(_ context.Context, slug string) ([]models.Mention, error) {
	m, err := s.db.Mentions(slug)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(m), nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	res, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

func (s *Service) regenOptions(path string) regen.Options {
	opts := s.ix.Options()
	opts.Parser = s.ix.ParseOptions(path)
	return opts
}

// buildNoteDetail constructs a NoteDetail from raw data without re-reading the file.
func (s *Service) buildNoteDetail(path string, data []byte) (*NoteDetail, error) {
	subject, kind := models.SubjectFromPath(path)
	text := string(data)
	groups, section := s.Links(text, subject)

	opts := s.regenOptions(path)
	needsUpdate := regen.NeedsUpdate(text, s.ix.LookupFor(groups), opts)

	var mentions []models.Mention
	if subject.Slug != "" {
		var err error
		if mentions, err = s.db.Mentions(subject.Slug); err != nil {
			return nil, err
		}
	}

	updatedAt := time.Now()
	if row, err := s.db.GetNote(path); err == nil {
		updatedAt = row.UpdatedAt
	}

	return &NoteDetail{
		Path:        path,
		Subject:     subject,
		Kind:        kind,
		Content:     text,
		Checksum:    checksum.Sum(data),
		Groups:      nonNilSlice(groups),
		Links:       section,
		NeedsUpdate: needsUpdate,
		Mentions:    nonNilSlice(mentions),
		UpdatedAt:   updatedAt,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
