package index

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/starford/notelinker/internal/checksum"
	"github.com/starford/notelinker/internal/models"
	"github.com/starford/notelinker/internal/parser"
	"github.com/starford/notelinker/internal/regen"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vocab"
)

// Indexer keeps the index in step with the vault.
type Indexer struct {
	db     *DB
	store  storage.Provider
	opts   regen.Options
	logger *slog.Logger
}

// NewIndexer creates an Indexer parsing notes with opts.
func NewIndexer(db *DB, store storage.Provider, opts regen.Options, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, store: store, opts: opts, logger: logger}
}

// Options returns the parse and regeneration options of the indexer.
func (ix *Indexer) Options() regen.Options {
	return ix.opts
}

// ParseOptions returns the parser options scoped to the subject of path.
func (ix *Indexer) ParseOptions(path string) parser.Options {
	subject, _ := models.SubjectFromPath(path)
	return ix.opts.Parser.WithSubject(subject)
}

// LookupFor returns the dataset snapshot covering the entries of groups.
// Failures degrade to an empty lookup, which leaves every note unchanged.
func (ix *Indexer) LookupFor(groups []parser.Group) vocab.Lookup {
	var slugs []string
	for _, e := range parser.Entries(groups) {
		if e.IsVocab() && !e.NotIncluded && !e.Override {
			slugs = append(slugs, e.Slug)
		}
	}
	if len(slugs) == 0 {
		return vocab.Empty
	}
	lookup, err := ix.db.Lookup(slugs)
	if err != nil {
		ix.logger.Warn("lookup failed, assuming notes are current", slog.String("error", err.Error()))
		return vocab.Empty
	}
	return lookup
}

// IndexFile parses data and upserts it with its entries and change decision.
func (ix *Indexer) IndexFile(path string, data []byte) (*NoteRow, error) {
	subject, kind := models.SubjectFromPath(path)
	opts := ix.opts
	opts.Parser = opts.Parser.WithSubject(subject)

	text := string(data)
	groups := parser.ParseGroups(text, opts.Parser)
	lookup := ix.LookupFor(groups)

	var entries []EntryRow
	for _, e := range parser.Entries(groups) {
		entries = append(entries, EntryRow{
			LineIndex:   e.LineIndex,
			Slug:        e.Slug,
			Metadata:    e.Metadata,
			Meanings:    e.Meanings,
			NotIncluded: e.NotIncluded,
			Override:    e.Override,
		})
	}

	row := NoteRow{
		Path:        path,
		Subject:     subject,
		Kind:        kind,
		Checksum:    checksum.Sum(data),
		GroupCount:  len(groups),
		EntryCount:  len(entries),
		NeedsUpdate: regen.NeedsUpdate(text, lookup, opts),
	}
	if err := ix.db.UpsertNote(row, text, entries); err != nil {
		return nil, err
	}
	return &row, nil
}

// Sync walks the vault and brings the index up to date:
//   - new/changed files are parsed and upserted
//   - files removed from disk are deleted from the index
func (ix *Indexer) Sync() error {
	metas, err := ix.store.List("")
	if err != nil {
		return err
	}

	checksums, err := ix.db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := ix.store.Read(m.Path)
		if err != nil {
			ix.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if _, err := ix.IndexFile(m.Path, data); err != nil {
			ix.logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			ix.logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := ix.db.DeleteNote(p); err != nil {
				ix.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				ix.logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// Refresh recomputes the change decision of every indexed note against the
// current dataset and returns the paths whose decision flipped.
func (ix *Indexer) Refresh(ctx context.Context) ([]string, error) {
	bodies, err := ix.db.Bodies()
	if err != nil {
		return nil, err
	}
	rows, _, err := ix.db.ListNotes(ListFilter{Limit: len(bodies) + 1})
	if err != nil {
		return nil, err
	}

	type job struct {
		path   string
		body   string
		before bool
		after  bool
	}
	jobs := make([]job, 0, len(rows))
	var all []parser.Group
	for _, r := range rows {
		body := bodies[r.Path]
		jobs = append(jobs, job{path: r.Path, body: body, before: r.NeedsUpdate})
		all = append(all, parser.ParseGroups(body, ix.opts.Parser)...)
	}
	lookup := ix.LookupFor(all)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range jobs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			opts := ix.opts
			opts.Parser = ix.ParseOptions(jobs[i].path)
			jobs[i].after = regen.NeedsUpdate(jobs[i].body, lookup, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var flipped []string
	for _, j := range jobs {
		if j.before == j.after {
			continue
		}
		if err := ix.db.SetNeedsUpdate(j.path, j.after); err != nil {
			return flipped, err
		}
		flipped = append(flipped, j.path)
	}
	ix.logger.Info("refresh: change decisions recomputed",
		slog.Int("notes", len(jobs)), slog.Int("flipped", len(flipped)))
	return flipped, nil
}
