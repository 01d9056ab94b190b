package cache

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates cache entries when files under the tool root change.
// Directories are watched recursively; directories created while watching
// are added on the fly.
type Watcher struct {
	watcher *fsnotify.Watcher
	cache   *Cache
	root    string
	log     *slog.Logger
}

func NewWatcher(root string, c *Cache, log *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		watcher: fsw,
		cache:   c,
		root:    filepath.Clean(root),
		log:     log,
	}, nil
}

// Start begins watching. It returns after registering the directory tree;
// event handling runs in a goroutine until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addTree(w.root); err != nil {
		return err
	}
	w.log.Info("file watcher started", "root", w.root)

	go func() {
		defer w.watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(event)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Error("watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	path := filepath.Clean(event.Name)

	// New directories need their own watch.
	if event.Op&fsnotify.Create != 0 {
		if err := w.addTree(path); err == nil {
			w.log.Debug("watching new path", "path", path)
		}
	}

	if !strings.HasSuffix(path, ".xml") {
		return
	}
	if dropped := w.cache.Invalidate(path); dropped > 0 {
		w.log.Info("cache invalidated", "path", path, "entries", dropped)
	}
}

// addTree watches path and, if it is a directory, every directory below it.
func (w *Watcher) addTree(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The path may be a plain file, or may have vanished between
			// the event and the walk.
			if p == path {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(p); err != nil {
				return fmt.Errorf("watch %s: %w", p, err)
			}
		}
		return nil
	})
}
