package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/medialens/medialens/internal/index"
	"github.com/medialens/medialens/internal/scanner"
	"github.com/medialens/medialens/internal/store"
	"github.com/medialens/medialens/internal/vector"
)

// Watcher feeds library file events into the coordinator. Creates and
// modifications are resubmitted; deletions remove the record and its
// vector.
type Watcher struct {
	root      string
	coord     *index.Coordinator
	recStore  store.RecordStore
	vectors   *vector.Index
	debouncer *Debouncer
	logger    *slog.Logger
}

// New creates a Watcher for the library root.
func New(root string, coord *index.Coordinator, recStore store.RecordStore, vectors *vector.Index, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve library root: %w", err)
	}

	return &Watcher{
		root:      absRoot,
		coord:     coord,
		recStore:  recStore,
		vectors:   vectors,
		debouncer: NewDebouncer(debounce, logger),
		logger:    logger,
	}, nil
}

// Run watches until ctx is cancelled. fsnotify does not recurse, so
// every directory under the root is registered, and new directories are
// added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()
	defer w.debouncer.Stop()

	if err := addRecursive(fsw, w.root); err != nil {
		return err
	}

	w.logger.Info("watching library", slog.String("root", w.root))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleRawEvent(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))

		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			w.apply(ctx, batch)
		}
	}
}

func (w *Watcher) handleRawEvent(fsw *fsnotify.Watcher, event fsnotify.Event) {
	// New directories need their own watch before files land in them.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !strings.HasPrefix(filepath.Base(event.Name), ".") {
				if err := addRecursive(fsw, event.Name); err != nil {
					w.logger.Warn("watch new directory",
						slog.String("path", event.Name), slog.String("error", err.Error()))
				}
			}
			return
		}
	}

	if _, ok := scanner.MediaTypeFor(event.Name); !ok {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Create):
		w.debouncer.Add(FileEvent{Path: event.Name, Operation: OpCreate})
	case event.Op.Has(fsnotify.Write):
		w.debouncer.Add(FileEvent{Path: event.Name, Operation: OpModify})
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.debouncer.Add(FileEvent{Path: event.Name, Operation: OpDelete})
	}
}

// apply processes one debounced batch.
func (w *Watcher) apply(ctx context.Context, batch []FileEvent) {
	for _, event := range batch {
		switch event.Operation {
		case OpDelete:
			w.remove(ctx, event.Path)
		default:
			if _, err := w.coord.Submit(ctx, event.Path, false); err != nil {
				w.logger.Warn("resubmit after change failed",
					slog.String("path", event.Path), slog.String("error", err.Error()))
			}
		}
	}
}

// remove drops the record and its vector for a deleted file.
func (w *Watcher) remove(ctx context.Context, path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	id := store.RecordID(abs)

	if err := w.recStore.Delete(ctx, id); err != nil {
		w.logger.Warn("delete record after removal failed",
			slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	if w.vectors != nil {
		w.vectors.Remove(id)
	}
	w.logger.Info("removed deleted file from index", slog.String("path", path))
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, skip
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
