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
package mapfs

import (
	"errors"
	"io/fs"
	"os"
	"testing"
)

func TestWriteAdvancesModTime(t *testing.T) {
	mfs := New()
	mfs.AddFile("/p/a.ts", "a", 0o644)
	before, err := mfs.Stat("/p/a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if err := mfs.WriteFile("/p/a.ts", []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	after, err := mfs.Stat("/p/a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if !after.ModTime().After(before.ModTime()) {
		t.Errorf("ModTime did not advance: %v then %v", before.ModTime(), after.ModTime())
	}
	if got := mfs.Writes("/p/a.ts"); got != 1 {
		t.Errorf("Writes = %d, want 1", got)
	}
}

func TestRename(t *testing.T) {
	mfs := New()
	if err := mfs.WriteFile("/out/a.tmp", []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mfs.Rename("/out/a.tmp", "/out/a.js"); err != nil {
		t.Fatal(err)
	}
	if mfs.Exists("/out/a.tmp") {
		t.Error("old path still exists")
	}
	if got := mfs.Writes("/out/a.js"); got != 1 {
		t.Errorf("Writes(new) = %d, want 1", got)
	}

	err := mfs.Rename("/out/missing", "/out/b.js")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Rename(missing) = %v, want ErrNotExist", err)
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || linkErr.Old != "out/missing" {
		t.Errorf("Rename(missing) = %#v, want an *os.LinkError naming the old path", err)
	}
}

func TestDirectories(t *testing.T) {
	mfs := New()
	mfs.AddDir("/p/.git", 0o755)
	if err := mfs.MkdirAll("/p/dist/nested", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{"/p/.git", "/p/dist", "/p/dist/nested"} {
		info, err := mfs.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("Stat(%s) = %v, %v; want a directory", dir, info, err)
		}
	}

	mfs.AddFile("/p/file", "", 0o644)
	if err := mfs.MkdirAll("/p/file/sub", 0o755); err == nil {
		t.Error("MkdirAll through a file should fail")
	}
}

func TestGlobAndFiles(t *testing.T) {
	mfs := New()
	mfs.AddFile("/p/src/a.ts", "", 0o644)
	mfs.AddFile("/p/src/lib/b.ts", "", 0o644)
	mfs.AddFile("/p/src/lib/b.css", "", 0o644)
	mfs.AddDir("/p/src/empty", 0o755)

	matches, err := mfs.Glob("/p/src/**/*.ts")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 || matches[0] != "/p/src/a.ts" || matches[1] != "/p/src/lib/b.ts" {
		t.Errorf("Glob = %v", matches)
	}

	files := mfs.Files("/p/src/lib")
	if len(files) != 2 || files[0] != "/p/src/lib/b.css" || files[1] != "/p/src/lib/b.ts" {
		t.Errorf("Files = %v", files)
	}
}
