package target

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/macropower/mk/pkg/log"
)

// ErrScan wraps filesystem failures other than "path does not exist".
// Missing paths are data, not errors; everything else is fatal.
var ErrScan = errors.New("scan")

// File pairs a path with its modification time.
type File struct {
	ModTime time.Time
	Path    string
}

// Newer reports whether f was modified after other. Times are truncated to
// whole seconds first, so sub-second noise on coarse filesystems does not
// trigger rebuilds. Equal timestamps are not newer.
func (f File) Newer(other File) bool {
	return f.ModTime.Truncate(time.Second).After(other.ModTime.Truncate(time.Second))
}

func (f File) String() string {
	if f.ModTime.IsZero() {
		return f.Path
	}

	return fmt.Sprintf("%s (%s)", f.Path, humanize.Time(f.ModTime))
}

// Outcome is the result of scanning one set of declared paths.
// A path that exists but contains no regular files (an empty directory tree)
// leaves Found false without appearing in Missing.
type Outcome struct {
	Newest  File     // Newest regular file found; meaningful only when Found.
	Missing []string // Declared paths that do not exist on disk.
	Found   bool     // At least one regular file contributed a timestamp.
}

// Scanner collects modification times for declared paths, resolving them
// relative to a working directory.
type Scanner struct {
	logger *slog.Logger
	dir    string
}

// NewScanner creates a [Scanner] rooted at dir. An empty dir means the
// process working directory.
func NewScanner(dir string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Scanner{dir: dir, logger: logger}
}

// Scan resolves every path and returns the newest regular file among them,
// recursing into directories. Missing paths are recorded in the outcome.
func (s *Scanner) Scan(ctx context.Context, paths []string) (Outcome, error) {
	var out Outcome

	for _, p := range paths {
		f, found, err := s.newest(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			out.Missing = append(out.Missing, p)
			s.logger.Log(ctx, log.SlogLevelTrace, "path does not exist",
				slog.String("path", p),
			)

			continue

		case err != nil:
			return Outcome{}, fmt.Errorf("%w: %q: %w", ErrScan, p, err)
		}

		if !found {
			s.logger.Log(ctx, log.SlogLevelTrace, "no files under path",
				slog.String("path", p),
			)

			continue
		}

		s.logger.Log(ctx, log.SlogLevelTrace, "scanned path",
			slog.String("path", p),
			slog.String("newest", f.String()),
		)

		if !out.Found || f.ModTime.After(out.Newest.ModTime) {
			out.Newest = f
			out.Found = true
		}
	}

	return out, nil
}

// newest finds the newest regular file at or under path. The walk is
// iterative, so deep trees cannot exhaust the goroutine stack, and symlinked
// directories are not followed, so cycles cannot occur.
func (s *Scanner) newest(path string) (File, bool, error) {
	root := filepath.Join(s.dir, path)

	fi, err := os.Lstat(root)
	if err != nil {
		return File{}, false, err
	}

	if fi.Mode()&fs.ModeSymlink != 0 {
		// Follow a symlink given directly as a path spec, but not links
		// discovered during the walk below.
		fi, err = os.Stat(root)
		if err != nil {
			return File{}, false, err
		}
	}

	if !fi.IsDir() {
		return File{Path: path, ModTime: fi.ModTime()}, true, nil
	}

	var (
		newest File
		found  bool
		stack  = []string{root}
	)

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return File{}, false, fmt.Errorf("read %q: %w", dir, err)
		}

		for _, entry := range entries {
			sub := filepath.Join(dir, entry.Name())

			switch {
			case entry.IsDir():
				stack = append(stack, sub)

			case entry.Type().IsRegular():
				info, err := entry.Info()
				if err != nil {
					return File{}, false, fmt.Errorf("stat %q: %w", sub, err)
				}

				if !found || info.ModTime().After(newest.ModTime) {
					newest = File{Path: sub, ModTime: info.ModTime()}
					found = true
				}
			}
		}
	}

	return newest, found, nil
}

// Exists reports whether a declared path is present, resolved against the
// scanner's working directory.
func (s *Scanner) Exists(path string) (bool, error) {
	_, err := os.Lstat(filepath.Join(s.dir, path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: %q: %w", ErrScan, path, err)
	}

	return true, nil
}
