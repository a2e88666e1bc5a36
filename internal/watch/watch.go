/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package watch reports debounced batches of changed project files.
package watch

import (
	"context"
	iofs "io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bennypowers.dev/ripple/internal/logging"
	"bennypowers.dev/ripple/paths"
)

// DefaultDebounce is how long the watcher waits for edits to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches project directories recursively, plus individual files
// outside them that the build depends on.
type Watcher struct {
	roots    []string
	debounce time.Duration
	logger   logging.Logger
	fsw      *fsnotify.Watcher

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
}

// New creates a watcher over roots. Hidden directories and node_modules
// are skipped.
func New(roots []string, debounce time.Duration, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		roots:    paths.NormAll(roots),
		debounce: debounce,
		logger:   logging.OrDiscard(logger),
		fsw:      fsw,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
	}
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// addTree adds root and every directory below it.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(filepath.FromSlash(root), func(p string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != filepath.FromSlash(root) && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		return w.addDir(paths.Norm(p))
	})
}

func (w *Watcher) addDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsw.Add(filepath.FromSlash(dir)); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == "node_modules"
}

// SetFiles replaces the set of individually watched files. Files outside
// the roots get their directory watched.
func (w *Watcher) SetFiles(files []string) {
	next := make(map[string]bool, len(files))
	for _, f := range paths.NormAll(files) {
		next[f] = true
		if w.underRoot(f) {
			continue
		}
		dir := paths.Norm(filepath.Dir(f))
		if err := w.addDir(dir); err != nil {
			w.logger.Debug("could not watch", "dir", dir, "error", err)
		}
	}
	w.mu.Lock()
	w.files = next
	w.mu.Unlock()
}

// Files returns the individually watched files, sorted.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Sorted(maps.Keys(w.files))
}

func (w *Watcher) underRoot(p string) bool {
	for _, root := range w.roots {
		if !paths.IsChild(p, root) {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if !slices.ContainsFunc(strings.Split(rel, "/"), skipDir) {
			return true
		}
	}
	return false
}

// accept reports whether an event concerns the build.
func (w *Watcher) accept(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
		return false
	}
	p := paths.Norm(ev.Name)
	w.mu.Lock()
	watched := w.files[p]
	w.mu.Unlock()
	return watched || w.underRoot(p)
}

// Run sends sorted batches of changed files to out until ctx is done.
func (w *Watcher) Run(ctx context.Context, out chan<- []string) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 && w.underRoot(paths.Norm(ev.Name)) {
				if err := w.addTree(paths.Norm(ev.Name)); err != nil {
					w.logger.Debug("could not watch", "path", ev.Name, "error", err)
				}
			}
			if w.accept(ev) {
				pending[paths.Norm(ev.Name)] = true
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := slices.Sorted(maps.Keys(pending))
			pending = make(map[string]bool)

			select {
			case out <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
