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
package watch

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"bennypowers.dev/ripple/paths"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, roots ...string) (*Watcher, <-chan []string) {
	t.Helper()
	w, err := New(roots, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	out := make(chan []string, 10)
	go func() { _ = w.Run(ctx, out) }()
	return w, out
}

// waitFor collects batches until one contains want.
func waitFor(t *testing.T, out <-chan []string, want string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-out:
			if slices.Contains(batch, want) {
				return
			}
		case <-deadline:
			t.Fatalf("no batch contained %s", want)
		}
	}
}

func TestWatcher_ModifiedSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "main.ts")
	writeFile(t, src, "export const a = 1;\n")

	_, out := startWatcher(t, filepath.Join(dir, "src"))
	writeFile(t, src, "export const a = 2;\n")

	waitFor(t, out, paths.Norm(src))
}

func TestWatcher_NewDirectoryIsWatched(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "src")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}

	_, out := startWatcher(t, root)
	if err := os.Mkdir(filepath.Join(root, "feature"), 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to pick up the new directory.
	time.Sleep(100 * time.Millisecond)
	nested := filepath.Join(root, "feature", "page.ts")
	writeFile(t, nested, "export {};\n")

	waitFor(t, out, paths.Norm(nested))
}

func TestWatcher_FilesOutsideRoots(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "src")
	shared := filepath.Join(dir, "shared", "theme.css")
	writeFile(t, filepath.Join(root, "main.ts"), "export {};\n")
	writeFile(t, shared, ".a {}\n")

	w, out := startWatcher(t, root)
	w.SetFiles([]string{shared})
	if got := w.Files(); !slices.Equal(got, []string{paths.Norm(shared)}) {
		t.Fatalf("Files() = %v", got)
	}

	writeFile(t, shared, ".a { color: red; }\n")
	waitFor(t, out, paths.Norm(shared))
}

func TestWatcher_Accept(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "src")
	writeFile(t, filepath.Join(root, "main.ts"), "export {};\n")

	w, err := New([]string{root}, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write in root", fsnotify.Event{Name: filepath.Join(root, "main.ts"), Op: fsnotify.Write}, true},
		{"remove in root", fsnotify.Event{Name: filepath.Join(root, "gone.ts"), Op: fsnotify.Remove}, true},
		{"chmod only", fsnotify.Event{Name: filepath.Join(root, "main.ts"), Op: fsnotify.Chmod}, false},
		{"node_modules", fsnotify.Event{Name: filepath.Join(root, "node_modules", "x", "index.d.ts"), Op: fsnotify.Write}, false},
		{"hidden directory", fsnotify.Event{Name: filepath.Join(root, ".cache", "x.ts"), Op: fsnotify.Create}, false},
		{"outside root", fsnotify.Event{Name: filepath.Join(dir, "other.ts"), Op: fsnotify.Write}, false},
		{"directory itself", fsnotify.Event{Name: root, Op: fsnotify.Create}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.accept(tt.ev); got != tt.want {
				t.Errorf("accept(%v) = %v, want %v", tt.ev, got, tt.want)
			}
		})
	}
}
