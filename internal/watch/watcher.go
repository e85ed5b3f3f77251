// Package watch observes the vault for changes to synced notes made outside
// of a sync run. It only reports; it never modifies notes or records.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/coursevault/internal/apperr"
	"github.com/starford/coursevault/internal/checksum"
	"github.com/starford/coursevault/internal/models"
	"github.com/starford/coursevault/internal/notepath"
)

const debounce = 200 * time.Millisecond

// Store looks up which item owns a note and what was last written to it.
type Store interface {
	AllPaths() (map[string]models.ItemKey, error)
	Get(key models.ItemKey) (*models.SyncRecord, error)
}

// Files reads vault-relative notes.
type Files interface {
	Read(path string) ([]byte, error)
}

// Notifier receives edit and removal reports for synced notes.
type Notifier interface {
	NoteEdited(path string, key models.ItemKey)
	NoteRemoved(path string, key models.ItemKey)
}

// Watch starts an fsnotify watcher on the vault root and reports changes to
// synced notes until ctx is cancelled. Events are debounced; a note is
// reported as edited only when its content matches neither the recorded
// hash nor a pending write intent, so the sync's own writes stay silent.
//
// New directories created at runtime are added to the watch list. Dot
// directories (.obsidian, .canvas_sync, ...) are ignored.
func Watch(ctx context.Context, store Store, files Files, vaultRoot string, logger *slog.Logger, n Notifier) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", vaultRoot))

	dirty := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	schedule := func(rel string) {
		dirty[rel] = struct{}{}
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			inspect(store, files, dirty, logger, n)
			dirty = make(map[string]struct{})

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name
			if hidden(vaultRoot, absPath) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					} else {
						logger.Debug("watcher: watching new dir", slog.String("path", absPath))
					}
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			schedule(filepath.ToSlash(rel))

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// inspect compares every dirty path that belongs to a synced item with its
// record and reports edits and removals.
func inspect(store Store, files Files, dirty map[string]struct{}, logger *slog.Logger, n Notifier) {
	paths, err := store.AllPaths()
	if err != nil {
		logger.Warn("watcher: load paths failed", slog.String("error", err.Error()))
		return
	}
	owners := notepath.NewOwners(paths)
	for rel := range dirty {
		key, ok := owners.Owner(rel)
		if !ok {
			continue
		}
		data, readErr := files.Read(rel)
		if errors.Is(readErr, fs.ErrNotExist) {
			logger.Info("watcher: synced note removed", slog.String("path", rel), slog.String("item_id", key.ID))
			if n != nil {
				n.NoteRemoved(rel, key)
			}
			continue
		}
		if readErr != nil {
			logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
			continue
		}
		rec, getErr := store.Get(key)
		if getErr != nil {
			if !errors.Is(getErr, apperr.ErrNotFound) {
				logger.Warn("watcher: record lookup failed", slog.String("path", rel), slog.String("error", getErr.Error()))
			}
			continue
		}
		if rec.Matches(checksum.Sum(data)) {
			continue
		}
		logger.Info("watcher: synced note edited", slog.String("path", rel), slog.String("item_id", key.ID))
		if n != nil {
			n.NoteEdited(rel, key)
		}
	}
}

// hidden reports whether p lies in a dot directory below root.
func hidden(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
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
