package index

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notelinker/internal/checksum"
	"github.com/starford/notelinker/internal/storage"
)

// Event kinds passed to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven index change.
type EventCallback func(kind string, path string)

const reconcileDelay = 200 * time.Millisecond

// Watch watches the vault and re-indexes notes as they change until ctx is
// cancelled. Every re-index recomputes groups and the change decision from
// scratch; cb (if non-nil) is called after each successful index mutation.
//
// Directories created at runtime are added to the watch list. Renames
// trigger a debounced reconciliation pass.
func (ix *Indexer) Watch(ctx context.Context, cb EventCallback) error {
	root := ix.store.Root()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	ix.logger.Info("watcher: started", slog.String("root", root))

	notify := func(kind, path string) {
		if cb != nil {
			cb(kind, path)
		}
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			ix.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			ix.reconcile(notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			ix.handleEvent(w, ev, notify, scheduleReconcile)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (ix *Indexer) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event, notify EventCallback, scheduleReconcile func()) {
	absPath := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(absPath); err == nil && info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") {
				return
			}
			if err := addDirsRecursive(w, absPath); err != nil {
				ix.logger.Warn("watcher: add new dir failed", slog.String("path", absPath), slog.String("error", err.Error()))
			}
			ix.indexNewDir(absPath, notify)
			return
		}
	}

	if !storage.IsNote(absPath) {
		return
	}
	rel, err := filepath.Rel(ix.store.Root(), absPath)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
		data, err := ix.store.Read(rel)
		if err != nil {
			ix.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		cs, _ := ix.db.GetChecksum(rel)
		if cs == checksum.Sum(data) {
			// Already indexed by the writer.
			return
		}
		if _, err := ix.IndexFile(rel, data); err != nil {
			ix.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		kind := EventUpdated
		if cs == "" {
			kind = EventCreated
		}
		ix.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
		notify(kind, rel)

	case ev.Op&fsnotify.Remove != 0:
		if cs, _ := ix.db.GetChecksum(rel); cs == "" {
			return
		}
		if err := ix.db.DeleteNote(rel); err != nil {
			ix.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		ix.logger.Debug("watcher: deleted", slog.String("path", rel))
		notify(EventDeleted, rel)

	case ev.Op&fsnotify.Rename != 0:
		// Rename fires on the old path only; the new path arrives as a
		// Create when it stays inside a watched directory.
		if err := ix.db.DeleteNote(rel); err != nil {
			ix.logger.Warn("watcher: rename delete failed", slog.String("path", rel), slog.String("error", err.Error()))
		} else {
			notify(EventDeleted, rel)
		}
		scheduleReconcile()
	}
}

// reconcile removes index rows without a file and indexes unindexed files.
func (ix *Indexer) reconcile(notify EventCallback) {
	checksums, err := ix.db.AllChecksums()
	if err != nil {
		ix.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := ix.store.List("")
	if err != nil {
		ix.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := ix.db.DeleteNote(p); err == nil {
				notify(EventDeleted, p)
			}
		}
	}

	for p, cs := range disk {
		if checksums[p] == cs {
			continue
		}
		data, err := ix.store.Read(p)
		if err != nil {
			continue
		}
		if _, err := ix.IndexFile(p, data); err == nil {
			notify(EventCreated, p)
		}
	}
}

// indexNewDir indexes any notes found in a newly created directory.
func (ix *Indexer) indexNewDir(dirPath string, notify EventCallback) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !storage.IsNote(path) {
			return nil
		}
		rel, err := filepath.Rel(ix.store.Root(), path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		data, err := ix.store.Read(rel)
		if err != nil {
			return nil
		}
		if _, err := ix.IndexFile(rel, data); err == nil {
			notify(EventCreated, rel)
		}
		return nil
	})
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
