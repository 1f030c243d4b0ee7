package vault

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Watcher drives incremental reindexing from file-system change events.
// Each file has its own debounce timer: every new event resets it, and a
// single coalesced reindex fires only after the quiet period elapses. The
// reindex always reads the file fresh so it observes a mutation's own
// write rather than a stale copy.
type Watcher struct {
	ix        *Index
	vaultRoot string
	ext       string
	debounce  time.Duration
	logger    *slog.Logger
	cb        EventCallback
}

// NewWatcher creates a watcher for the given vault root.
func NewWatcher(ix *Index, vaultRoot, ext string, debounce time.Duration, logger *slog.Logger, cb EventCallback) *Watcher {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	if ext == "" {
		ext = ".md"
	}
	return &Watcher{ix: ix, vaultRoot: vaultRoot, ext: ext, debounce: debounce, logger: logger, cb: cb}
}

// Run starts the fsnotify watcher and processes events until ctx is
// cancelled. New directories created at runtime are added to the watch
// list. Rename events trigger a debounced reconciliation pass that
// relocates or removes entries whose files moved or disappeared.
func (wt *Watcher) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, wt.vaultRoot); err != nil {
		return err
	}

	wt.logger.Info("watcher: started", slog.String("root", wt.vaultRoot))

	fireCh := make(chan string, 64)
	pending := make(map[string]*time.Timer)
	known := make(map[string]bool) // paths seen indexed, for created/updated kinds

	for _, rec := range wt.ix.Snapshot() {
		known[rec.Path] = true
	}

	schedule := func(rel string) {
		if t, ok := pending[rel]; ok {
			t.Reset(wt.debounce)
			return
		}
		pending[rel] = time.AfterFunc(wt.debounce, func() {
			select {
			case fireCh <- rel:
			case <-ctx.Done():
			}
		})
	}

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(wt.debounce)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(wt.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for _, t := range pending {
				t.Stop()
			}
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			wt.logger.Info("watcher: stopped")
			return nil

		case rel := <-fireCh:
			delete(pending, rel)
			kind := "updated"
			if !known[rel] {
				kind = "created"
			}
			if err := wt.ix.ReindexFile(rel, wt.ix.FreshReader()); err != nil {
				wt.logger.Warn("watcher: reindex failed", slog.String("path", rel), slog.String("error", err.Error()))
				continue
			}
			known[rel] = true
			wt.logger.Debug("watcher: reindexed", slog.String("path", rel), slog.String("op", kind))
			if wt.cb != nil {
				wt.cb(kind, rel)
			}

		case <-reconcileCh:
			wt.reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			// New directories are added to the watch list and their
			// contents scheduled for indexing.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						wt.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					wt.scheduleDir(absPath, schedule)
					continue
				}
			}

			if !strings.HasSuffix(absPath, wt.ext) {
				continue
			}
			rel, relErr := filepath.Rel(wt.vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(rel)

			case ev.Op&fsnotify.Remove != 0:
				if t, ok := pending[rel]; ok {
					t.Stop()
					delete(pending, rel)
				}
				wt.ix.RemoveFile(rel)
				delete(known, rel)
				wt.logger.Debug("watcher: removed", slog.String("path", rel))
				if wt.cb != nil {
					wt.cb("deleted", rel)
				}

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new path
				// arrives as a separate Create event. A reconciliation pass
				// relocates cache entries whose content moved.
				if t, ok := pending[rel]; ok {
					t.Stop()
					delete(pending, rel)
				}
				delete(known, rel)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			wt.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile compares cached paths against the disk after a rename burst.
// A cached entry whose content hash reappears at a new path is relocated
// (rename detection); entries with no file behind them are removed; disk
// files absent from the cache are indexed.
func (wt *Watcher) reconcile() {
	cached, err := wt.ix.db.AllPaths()
	if err != nil {
		wt.logger.Warn("reconcile: cache paths failed", slog.String("error", err.Error()))
		return
	}
	metas, err := wt.ix.store.List("")
	if err != nil {
		wt.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]string, len(metas))
	for _, m := range metas {
		disk[m.Path] = m.Checksum
	}

	// Stale cached paths, and new disk paths grouped by hash for rename
	// matching.
	newByHash := make(map[string]string)
	for p, cs := range disk {
		if _, ok := cached[p]; !ok {
			newByHash[cs] = p
		}
	}

	for p := range cached {
		if _, ok := disk[p]; ok {
			continue
		}
		entry, err := wt.ix.db.Get(p)
		if err == nil && entry != nil {
			if newPath, ok := newByHash[entry.Hash]; ok {
				if err := wt.ix.RenameFile(p, newPath, wt.ix.FreshReader()); err == nil {
					wt.logger.Debug("reconcile: relocated", slog.String("from", p), slog.String("to", newPath))
					delete(newByHash, entry.Hash)
					if wt.cb != nil {
						wt.cb("deleted", p)
						wt.cb("created", newPath)
					}
					continue
				}
			}
		}
		wt.ix.RemoveFile(p)
		wt.logger.Debug("reconcile: removed stale", slog.String("path", p))
		if wt.cb != nil {
			wt.cb("deleted", p)
		}
	}

	for _, p := range newByHash {
		if err := wt.ix.ReindexFile(p, wt.ix.FreshReader()); err == nil {
			wt.logger.Debug("reconcile: indexed new", slog.String("path", p))
			if wt.cb != nil {
				wt.cb("created", p)
			}
		}
	}
}

// scheduleDir schedules every vault file in a newly created directory.
func (wt *Watcher) scheduleDir(dirPath string, schedule func(string)) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, wt.ext) {
			return nil
		}
		rel, relErr := filepath.Rel(wt.vaultRoot, path)
		if relErr != nil {
			return nil
		}
		schedule(filepath.ToSlash(rel))
		return nil
	})
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
