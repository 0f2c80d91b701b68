package index

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/notelinker/internal/vocab"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	vaultDir, ix, db := testIndexer(t)
	writeNote(t, vaultDir, "vocabulary/大変/.keep", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go ix.Watch(ctx, func(kind, path string) {
		mu.Lock()
		events = append(events, kind+":"+path)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(vaultDir, "vocabulary", "大変", "meaning.md"), []byte("深刻（しんこく）Serious"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("vocabulary/大変/meaning.md")
		return cs != ""
	}, "new note not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:vocabulary/大変/meaning.md" {
				return true
			}
		}
		return false
	}, "expected created callback")
}

func TestWatcher_RewriteRecomputesDecision(t *testing.T) {
	vaultDir, ix, db := testIndexer(t)
	_ = db.UpsertVocab([]vocab.Record{seriousRecord})
	writeNote(t, vaultDir, "vocabulary/大変/meaning.md", "深刻（しんこく）Serious, Grave")
	if err := ix.Sync(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ix.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	writeNote(t, vaultDir, "vocabulary/大変/meaning.md", "深刻（しんこく）Serious")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, err := db.GetNote("vocabulary/大変/meaning.md")
		return err == nil && n.NeedsUpdate
	}, "edited note not re-evaluated")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	vaultDir, ix, db := testIndexer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ix.Watch(ctx, nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(vaultDir, "vocabulary", "本気")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "reading.md"), []byte("本気（ほんき）Seriousness"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("vocabulary/本気/reading.md")
		return cs != ""
	}, "note in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	vaultDir, ix, db := testIndexer(t)
	writeNote(t, vaultDir, "del.md", "深刻（しんこく）Serious")
	_ = ix.Sync()

	cs, _ := db.GetChecksum("del.md")
	if cs == "" {
		t.Fatal("precondition: file should be indexed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ix.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(vaultDir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.GetChecksum("del.md")
		return cs == ""
	}, "deleted file still in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	vaultDir, ix, db := testIndexer(t)
	writeNote(t, vaultDir, "old.md", "深刻（しんこく）Serious")
	_ = ix.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go ix.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(vaultDir, "old.md"), filepath.Join(vaultDir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.GetChecksum("old.md")
		newCS, _ := db.GetChecksum("renamed.md")
		return oldCS == "" && newCS != ""
	}, "rename reconciliation failed: old path should be removed and new path indexed")
}
