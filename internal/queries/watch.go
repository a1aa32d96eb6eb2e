package queries

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a Store's index when .kql files change on disk, so
// concurrent editors and agent runs observe fresh listings without a
// restart. Failure to start is non-fatal: the store falls back to its
// lazy rescan-on-invalidate behavior.
type Watcher struct {
	store   *Store
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// Watch starts watching the store's folder tree. Returns nil (and logs)
// when the folder does not exist or the platform watcher cannot start.
func Watch(store *Store) *Watcher {
	if store == nil {
		return nil
	}
	if _, err := os.Stat(store.Dir()); err != nil {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("saved-query watcher unavailable", "error", err)
		return nil
	}

	w := &Watcher{store: store, watcher: fw, done: make(chan struct{})}
	if err := w.addTree(store.Dir()); err != nil {
		slog.Warn("saved-query watcher setup failed", "error", err)
		fw.Close()
		return nil
	}

	w.wg.Add(1)
	go w.loop()
	slog.Debug("saved-query watcher started", "dir", store.Dir())
	return w
}

// Close stops the watcher. Safe on nil.
func (w *Watcher) Close() {
	if w == nil {
		return
	}
	close(w.done)
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// New category folders need their own watch entry.
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.watcher.Add(ev.Name)
				}
			}
			w.store.Invalidate()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("saved-query watch error", "error", err)
		}
	}
}
