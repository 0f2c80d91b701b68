// Package testutil provides shared test helpers for setting up vaults,
// databases and vocabulary fixtures.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/notelinker/internal/index"
	"github.com/starford/notelinker/internal/regen"
	"github.com/starford/notelinker/internal/storage"
	"github.com/starford/notelinker/internal/vocab"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notelinker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestIndexer wires a temporary vault and database into an Indexer using the
// default note options.
func TestIndexer(t *testing.T) (string, storage.Provider, *index.DB, *index.Indexer) {
	t.Helper()
	vaultDir, store := TestVault(t)
	db := TestDB(t)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return vaultDir, store, db, index.NewIndexer(db, store, regen.DefaultOptions(), logger)
}

// WriteNote writes body to rel inside vaultDir, creating directories.
func WriteNote(t *testing.T, vaultDir, rel, body string) {
	t.Helper()
	abs := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Records is a small vocabulary dataset used across tests.
func Records() []vocab.Record {
	return []vocab.Record{
		{
			Slug:     "深刻",
			Readings: []vocab.Reading{{Reading: "しんこく"}},
			Meanings: []vocab.Meaning{{Meaning: "Serious", Primary: true}, {Meaning: "Grave"}},
		},
		{
			Slug:     "本気",
			Readings: []vocab.Reading{{Reading: "ほんき"}},
			Meanings: []vocab.Meaning{{Meaning: "Seriousness", Primary: true}, {Meaning: "Earnestness"}},
		},
		{
			Slug:     "大変",
			Readings: []vocab.Reading{{Reading: "たいへん"}},
			Meanings: []vocab.Meaning{{Meaning: "Very"}, {Meaning: "Serious", Primary: true}},
		},
	}
}
