// Package watch re-runs a callback whenever a declared input path changes.
// It backs the --watch flag; the one-shot evaluation path never touches it.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher tracks the declared inputs of one or more rule groups and invokes
// a callback when any of them change on disk.
type Watcher struct {
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// Explicit file inputs, by absolute path. Their parent directories are
	// watched so that deletion and re-creation are still observed.
	files map[string]struct{}

	// Directory inputs, by absolute path. Any event under one of these
	// roots is relevant.
	roots map[string]struct{}
}

func New(logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher: fsw,
		logger:  logger,
		files:   make(map[string]struct{}),
		roots:   make(map[string]struct{}),
	}, nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close() //nolint:wrapcheck // Return the original error.
}

// AddInputs registers declared input paths, resolved against dir. A file
// input watches its parent directory; a directory input watches the whole
// subtree. Missing inputs watch their parent, so their creation triggers a
// re-evaluation.
func (w *Watcher) AddInputs(dir string, inputs []string) error {
	for _, in := range inputs {
		p, err := filepath.Abs(filepath.Join(dir, in))
		if err != nil {
			return fmt.Errorf("resolve %q: %w", in, err)
		}

		fi, err := os.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			w.files[p] = struct{}{}
			if err := w.addDir(filepath.Dir(p)); err != nil {
				return err
			}

			continue

		case err != nil:
			return fmt.Errorf("stat %q: %w", in, err)
		}

		if !fi.IsDir() {
			w.files[p] = struct{}{}
			if err := w.addDir(filepath.Dir(p)); err != nil {
				return err
			}

			continue
		}

		w.roots[p] = struct{}{}

		err = filepath.WalkDir(p, func(sub string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return w.addDir(sub)
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("walk %q: %w", in, err)
		}
	}

	w.logger.Debug("added file watchers",
		slog.Int("files", len(w.files)),
		slog.Int("dirs", len(w.roots)),
	)

	return nil
}

func (w *Watcher) addDir(dir string) error {
	err := w.watcher.Add(dir)
	if err != nil {
		return fmt.Errorf("add path to watcher: %w", err)
	}

	return nil
}

// Run blocks, invoking fn after each burst of relevant events, until ctx is
// done or fn returns an error. Bursts are coalesced by the debounce window,
// so an editor writing several files triggers one re-evaluation.
func (w *Watcher) Run(ctx context.Context, debounce time.Duration, fn func(ctx context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			// Chmod carries no content change.
			if evt.Has(fsnotify.Chmod) {
				continue
			}

			if !w.relevant(evt.Name) {
				continue
			}

			w.logger.Debug("input changed",
				slog.String("path", evt.Name),
				slog.String("op", evt.Op.String()),
			)

			w.drain(ctx, debounce)

			err := fn(ctx)
			if err != nil {
				return err
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}

			w.logger.Error("watch error", slog.Any("err", err))
		}
	}
}

// drain swallows events for the debounce window.
func (w *Watcher) drain(ctx context.Context, debounce time.Duration) {
	timer := time.NewTimer(debounce)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case _, ok := <-w.watcher.Events:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	if _, ok := w.files[name]; ok {
		return true
	}

	for root := range w.roots {
		if name == root {
			return true
		}

		rel, err := filepath.Rel(root, name)
		if err == nil && filepath.IsLocal(rel) {
			return true
		}
	}

	return false
}
