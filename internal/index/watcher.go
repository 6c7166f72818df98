package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vowpost/internal/checksum"
	"github.com/starford/vowpost/internal/scheduler"
	"github.com/starford/vowpost/internal/storage"
)

// DefaultWatchDebounce is the quiet period applied per path before a changed
// file is re-indexed.
const DefaultWatchDebounce = 100 * time.Millisecond

const reconcileDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// WatchOption configures Watch.
type WatchOption func(*watcher)

// WithDebounce sets the per-path debounce delay.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *watcher) { w.debounce = d }
}

type watcher struct {
	db       DocumentIndex
	store    storage.Provider
	root     string
	logger   *slog.Logger
	cb       EventCallback
	debounce time.Duration
}

// Watch starts an fsnotify watcher on the vault root and processes file
// change events until ctx is cancelled. Bursts of events on one path collapse
// into a single re-index once the path has been quiet for the debounce delay.
// cb (if non-nil) is called after each index mutation that changed something.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a reconciliation pass that removes stale
// index entries whose files no longer exist on disk.
func Watch(ctx context.Context, db DocumentIndex, store storage.Provider, vaultRoot string, logger *slog.Logger, cb EventCallback, opts ...WatchOption) error {
	wt := &watcher{
		db:       db,
		store:    store,
		root:     vaultRoot,
		logger:   logger,
		cb:       cb,
		debounce: DefaultWatchDebounce,
	}
	for _, opt := range opts {
		opt(wt)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	files := scheduler.NewGroup(wt.debounce)
	defer files.Close()
	reconcile := scheduler.NewTask(reconcileDelay, wt.reconcile)
	defer reconcile.Close()

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					// Files may have landed before the directory was watched.
					wt.scheduleDir(files, absPath)
					continue
				}
			}

			rel, ok := wt.rel(absPath)
			if !ok || !storage.IsDocument(rel) {
				continue
			}

			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			files.Schedule(rel, func() { wt.refresh(rel) })
			// fsnotify fires Rename on the OLD path only; the new path
			// arrives as a Create if it stays inside a watched dir. A
			// reconciliation pass catches moves out of or into the vault.
			if ev.Op&fsnotify.Rename != 0 {
				reconcile.Schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// refresh re-indexes one path from its current state on disk.
func (w *watcher) refresh(rel string) {
	prev, _ := w.db.GetChecksum(rel)

	data, err := w.store.Read(rel)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		if prev == "" {
			return
		}
		if delErr := w.db.DeleteDocument(rel); delErr != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", delErr.Error()))
			return
		}
		w.logger.Debug("watcher: deleted", slog.String("path", rel))
		w.emit("deleted", rel)
		return
	}

	if prev == checksum.Sum(data) {
		return
	}
	if idxErr := IndexFile(w.db, rel, data); idxErr != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
		return
	}
	kind := "updated"
	if prev == "" {
		kind = "created"
	}
	w.logger.Debug("watcher: indexed", slog.String("path", rel), slog.String("op", kind))
	w.emit(kind, rel)
}

// reconcile does a lightweight sync using batch lookups:
// finds index entries without a corresponding file on disk and removes them,
// and finds on-disk files that are not indexed or changed and indexes them.
func (w *watcher) reconcile() {
	checksums, err := w.db.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if delErr := w.db.DeleteDocument(p); delErr == nil {
				w.logger.Debug("reconcile: removed stale", slog.String("path", p))
				w.emit("deleted", p)
			}
		}
	}

	for p, cs := range disk {
		prev, indexed := checksums[p]
		if prev == cs {
			continue
		}
		data, readErr := w.store.Read(p)
		if readErr != nil {
			continue
		}
		if idxErr := IndexFile(w.db, p, data); idxErr == nil {
			kind := "updated"
			if !indexed {
				kind = "created"
			}
			w.logger.Debug("reconcile: indexed", slog.String("path", p), slog.String("op", kind))
			w.emit(kind, p)
		}
	}
}

// scheduleDir queues every post found in a newly created directory.
func (w *watcher) scheduleDir(files *scheduler.Group, dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok && storage.IsDocument(rel) {
			files.Schedule(rel, func() { w.refresh(rel) })
		}
		return nil
	})
}

func (w *watcher) rel(absPath string) (string, bool) {
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *watcher) emit(kind, path string) {
	if w.cb != nil {
		w.cb(kind, path)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
