package index

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/notelinker/internal/apperr"
	"github.com/starford/notelinker/internal/parser"
	"github.com/starford/notelinker/internal/regen"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vocab"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "notelinker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testIndexer(t *testing.T) (string, *Indexer, *DB) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	return vaultDir, NewIndexer(db, store, regen.DefaultOptions(), quietLogger()), db
}

func writeNote(t *testing.T, vaultDir, rel, body string) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

var seriousRecord = vocab.Record{
	Slug:     "深刻",
	Readings: []vocab.Reading{{Reading: "しんこく"}},
	Meanings: []vocab.Meaning{{Meaning: "Serious", Primary: true}, {Meaning: "Grave"}},
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"notes", "entries", "vocabulary"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestUpsertAndGetChecksum(t *testing.T) {
	db := testDB(t)
	row := NoteRow{
		Path:      "vocabulary/大変/meaning.md",
		Subject:   parser.Subject{Type: "vocabulary", Slug: "大変"},
		Kind:      "meaning",
		Checksum:  "abc123",
		UpdatedAt: time.Now(),
	}
	if err := db.UpsertNote(row, "深刻（しんこく）Serious", []EntryRow{{LineIndex: 0, Slug: "深刻"}}); err != nil {
		t.Fatalf("UpsertNote: %v", err)
	}
	cs, err := db.GetChecksum(row.Path)
	if err != nil {
		t.Fatalf("GetChecksum: %v", err)
	}
	if cs != "abc123" {
		t.Errorf("checksum = %q, want %q", cs, "abc123")
	}

	got, err := db.GetNote(row.Path)
	if err != nil {
		t.Fatalf("GetNote: %v", err)
	}
	if got.Subject.Slug != "大変" || got.Kind != "meaning" {
		t.Errorf("note = %+v", got)
	}
}

func TestGetNote_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetNote("missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertReplacesEntries(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md"}, "body", []EntryRow{{LineIndex: 0, Slug: "深刻"}, {LineIndex: 1, Slug: "本気"}})
	_ = db.UpsertNote(NoteRow{Path: "a.md"}, "body", []EntryRow{{LineIndex: 0, Slug: "本気"}})

	m, err := db.Mentions("深刻")
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("stale entry mentions = %+v", m)
	}
}

func TestMentions(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md"}, "body", []EntryRow{{LineIndex: 2, Slug: "深刻"}})
	_ = db.UpsertNote(NoteRow{Path: "b.md"}, "body", []EntryRow{{LineIndex: 0, Slug: "深刻"}, {LineIndex: 1, Slug: "本気"}})

	m, err := db.Mentions("深刻")
	if err != nil {
		t.Fatalf("Mentions: %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("expected 2 mentions, got %d", len(m))
	}
	if m[0].Path != "a.md" || m[0].LineIndex != 2 || m[1].Path != "b.md" {
		t.Errorf("mentions = %+v", m)
	}
}

func TestDeleteNote(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "del.md", Checksum: "x"}, "body", []EntryRow{{LineIndex: 0, Slug: "深刻"}})

	if err := db.DeleteNote("del.md"); err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	cs, _ := db.GetChecksum("del.md")
	if cs != "" {
		t.Error("note still exists after delete")
	}
	m, _ := db.Mentions("深刻")
	if len(m) != 0 {
		t.Error("entries should be deleted with note")
	}
}

func TestListNotes_Filters(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "vocabulary/a/meaning.md", Subject: parser.Subject{Slug: "a"}, NeedsUpdate: true}, "", nil)
	_ = db.UpsertNote(NoteRow{Path: "vocabulary/a/reading.md", Subject: parser.Subject{Slug: "a"}}, "", nil)
	_ = db.UpsertNote(NoteRow{Path: "vocabulary/b/meaning.md", Subject: parser.Subject{Slug: "b"}, NeedsUpdate: true}, "", nil)

	rows, total, err := db.ListNotes(ListFilter{})
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if total != 3 || len(rows) != 3 {
		t.Errorf("total = %d, rows = %d", total, len(rows))
	}

	rows, total, _ = db.ListNotes(ListFilter{NeedsUpdate: true})
	if total != 2 || len(rows) != 2 {
		t.Errorf("needs_update total = %d", total)
	}

	rows, total, _ = db.ListNotes(ListFilter{Subject: "a", NeedsUpdate: true})
	if total != 1 || rows[0].Path != "vocabulary/a/meaning.md" {
		t.Errorf("subject filter = %+v", rows)
	}

	rows, total, _ = db.ListNotes(ListFilter{Limit: 1, Offset: 1})
	if total != 3 || len(rows) != 1 || rows[0].Path != "vocabulary/a/reading.md" {
		t.Errorf("page = %+v (total %d)", rows, total)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertNote(NoteRow{Path: "a.md", Subject: parser.Subject{Slug: "大変"}}, "深刻（しんこく）Serious", nil)
	_ = db.UpsertNote(NoteRow{Path: "b.md", Subject: parser.Subject{Slug: "本気"}}, "unrelated", nil)

	results, err := db.Search("Serious", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "a.md" {
		t.Fatalf("results = %+v", results)
	}
}

func TestVocab_UpsertGetLookup(t *testing.T) {
	db := testDB(t)
	other := vocab.Record{Slug: "本気", Meanings: []vocab.Meaning{{Meaning: "Seriousness", Primary: true}}}
	if err := db.UpsertVocab([]vocab.Record{seriousRecord, other}); err != nil {
		t.Fatalf("UpsertVocab: %v", err)
	}

	rec, err := db.GetVocab("深刻")
	if err != nil {
		t.Fatalf("GetVocab: %v", err)
	}
	if len(rec.Readings) != 1 || rec.Readings[0].Reading != "しんこく" || len(rec.Meanings) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if _, err := db.GetVocab("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}

	m, err := db.Lookup([]string{"深刻", "深刻", "missing"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(m) != 1 {
		t.Fatalf("lookup = %+v", m)
	}
	if _, ok := m.Get("深刻"); !ok {
		t.Error("lookup missing 深刻")
	}

	n, _ := db.VocabCount()
	if n != 2 {
		t.Errorf("VocabCount = %d, want 2", n)
	}
}

func TestVocab_UpsertReplaces(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertVocab([]vocab.Record{seriousRecord})
	_ = db.UpsertVocab([]vocab.Record{{Slug: "深刻", Meanings: []vocab.Meaning{{Meaning: "Severe", Primary: true}}}})

	rec, _ := db.GetVocab("深刻")
	if len(rec.Meanings) != 1 || rec.Meanings[0].Meaning != "Severe" || len(rec.Readings) != 0 {
		t.Errorf("record = %+v", rec)
	}
}

func TestIndexer_IndexFile(t *testing.T) {
	_, ix, db := testIndexer(t)
	_ = db.UpsertVocab([]vocab.Record{seriousRecord})

	body := "深刻（しんこく）Serious\n本気（ほんき）Seriousness\nprose\n深刻（）"
	row, err := ix.IndexFile("vocabulary/大変/meaning.md", []byte(body))
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if row.GroupCount != 2 || row.EntryCount != 3 {
		t.Errorf("counts = %d groups, %d entries", row.GroupCount, row.EntryCount)
	}
	if !row.NeedsUpdate {
		t.Error("expected needs_update for stale meanings")
	}
	if row.Subject.Slug != "大変" || row.Kind != "meaning" {
		t.Errorf("subject = %+v, kind = %q", row.Subject, row.Kind)
	}

	m, _ := db.Mentions("深刻")
	if len(m) != 2 || m[1].LineIndex != 3 {
		t.Errorf("mentions = %+v", m)
	}
}

func TestIndexer_IndexFileCurrentNote(t *testing.T) {
	_, ix, db := testIndexer(t)
	_ = db.UpsertVocab([]vocab.Record{seriousRecord})

	row, err := ix.IndexFile("vocabulary/大変/meaning.md", []byte("深刻（しんこく）Serious, Grave"))
	if err != nil {
		t.Fatalf("IndexFile: %v", err)
	}
	if row.NeedsUpdate {
		t.Error("up to date note flagged for update")
	}
}

func TestIndexer_Sync(t *testing.T) {
	vaultDir, ix, db := testIndexer(t)
	writeNote(t, vaultDir, "vocabulary/大変/meaning.md", "深刻（しんこく）Serious")
	writeNote(t, vaultDir, "vocabulary/大変/reading.md", "本気（ほんき）Seriousness")
	writeNote(t, vaultDir, ".hidden/x.md", "ignored")

	if err := ix.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	_, total, _ := db.ListNotes(ListFilter{})
	if total != 2 {
		t.Fatalf("indexed %d notes, want 2", total)
	}

	_ = os.Remove(filepath.Join(vaultDir, "vocabulary", "大変", "reading.md"))
	if err := ix.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	cs, _ := db.GetChecksum("vocabulary/大変/reading.md")
	if cs != "" {
		t.Error("stale note not removed by sync")
	}
}

func TestIndexer_Refresh(t *testing.T) {
	vaultDir, ix, db := testIndexer(t)
	writeNote(t, vaultDir, "vocabulary/大変/meaning.md", "深刻（しんこく）Serious")
	writeNote(t, vaultDir, "vocabulary/本気/meaning.md", "prose only")
	if err := ix.Sync(); err != nil {
		t.Fatal(err)
	}

	n, _ := db.GetNote("vocabulary/大変/meaning.md")
	if n.NeedsUpdate {
		t.Fatal("precondition: no dataset, note should be current")
	}

	_ = db.UpsertVocab([]vocab.Record{seriousRecord})
	flipped, err := ix.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(flipped) != 1 || flipped[0] != "vocabulary/大変/meaning.md" {
		t.Errorf("flipped = %v", flipped)
	}
	n, _ = db.GetNote("vocabulary/大変/meaning.md")
	if !n.NeedsUpdate {
		t.Error("needs_update not stored")
	}

	flipped, _ = ix.Refresh(context.Background())
	if len(flipped) != 0 {
		t.Errorf("second refresh flipped %v", flipped)
	}
}

func TestIndexer_LookupForSkipsMarkedEntries(t *testing.T) {
	_, ix, db := testIndexer(t)
	_ = db.UpsertVocab([]vocab.Record{seriousRecord})

	groups := parser.ParseGroups("深刻（しんこく）not on WK", ix.Options().Parser)
	lookup := ix.LookupFor(groups)
	if _, ok := lookup.Get("深刻"); ok {
		t.Error("not-included entry should not be looked up")
	}
}
