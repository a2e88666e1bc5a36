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
// Package mapfs provides an in-memory filesystem for compiler tests.
//
// Every write advances a logical clock and stamps the file with it, so a
// test can tell whether a build rewrote an output by comparing ModTime
// before and after.
package mapfs

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"
	"sync"
	"testing/fstest"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// MapFileSystem implements fs.FileSystem over an fstest.MapFS.
type MapFileSystem struct {
	mu     sync.RWMutex
	mapFS  fstest.MapFS
	clock  int
	writes map[string]int
}

// New creates an empty filesystem.
func New() *MapFileSystem {
	return &MapFileSystem{
		mapFS:  make(fstest.MapFS),
		writes: make(map[string]int),
	}
}

func (mfs *MapFileSystem) tickLocked() time.Time {
	mfs.clock++
	return epoch.Add(time.Duration(mfs.clock) * time.Second)
}

// AddFile adds a file.
func (mfs *MapFileSystem) AddFile(path string, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.mapFS[mfs.cleanPath(path)] = &fstest.MapFile{
		Data:    []byte(content),
		Mode:    mode,
		ModTime: mfs.tickLocked(),
	}
}

// AddDir adds an empty directory.
func (mfs *MapFileSystem) AddDir(path string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.mapFS[mfs.cleanPath(path)] = &fstest.MapFile{
		Mode:    fs.ModeDir | mode.Perm(),
		ModTime: mfs.tickLocked(),
	}
}

// WriteFile implements FileSystem.
func (mfs *MapFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)
	if err := mfs.ensureParentDirLocked(name); err != nil {
		return err
	}
	mfs.mapFS[name] = &fstest.MapFile{
		Data:    append([]byte(nil), data...),
		Mode:    perm,
		ModTime: mfs.tickLocked(),
	}
	mfs.writes[name]++
	return nil
}

// ReadFile implements FileSystem.
func (mfs *MapFileSystem) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.ReadFile(mfs.mapFS, mfs.cleanPath(name))
}

// Remove implements FileSystem.
func (mfs *MapFileSystem) Remove(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)
	if _, exists := mfs.mapFS[name]; !exists {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}
	delete(mfs.mapFS, name)
	return nil
}

// Rename implements FileSystem. The moved file counts as a write of newpath.
func (mfs *MapFileSystem) Rename(oldpath, newpath string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	oldpath, newpath = mfs.cleanPath(oldpath), mfs.cleanPath(newpath)
	file, exists := mfs.mapFS[oldpath]
	if !exists {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrNotExist}
	}
	if err := mfs.ensureParentDirLocked(newpath); err != nil {
		return err
	}
	delete(mfs.mapFS, oldpath)
	delete(mfs.writes, oldpath)
	file.ModTime = mfs.tickLocked()
	mfs.mapFS[newpath] = file
	mfs.writes[newpath]++
	return nil
}

// MkdirAll implements FileSystem.
func (mfs *MapFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	path = mfs.cleanPath(path)
	for dir := path; dir != "." && dir != ""; dir = parentOf(dir) {
		if file, exists := mfs.mapFS[dir]; exists {
			if !file.Mode.IsDir() {
				return &fs.PathError{Op: "mkdir", Path: dir, Err: fmt.Errorf("not a directory")}
			}
			continue
		}
		mfs.mapFS[dir] = &fstest.MapFile{Mode: fs.ModeDir | perm.Perm(), ModTime: epoch}
	}
	return nil
}

// Stat implements FileSystem.
func (mfs *MapFileSystem) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.Stat(mfs.mapFS, mfs.cleanPath(name))
}

// Exists implements FileSystem. Directories implied by a file path exist.
func (mfs *MapFileSystem) Exists(path string) bool {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	path = mfs.cleanPath(path)
	if _, exists := mfs.mapFS[path]; exists {
		return true
	}
	prefix := path + "/"
	for filePath := range mfs.mapFS {
		if strings.HasPrefix(filePath, prefix) {
			return true
		}
	}
	return false
}

// Glob implements FileSystem.
func (mfs *MapFileSystem) Glob(pattern string) ([]string, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	matches, err := doublestar.Glob(mfs.mapFS, mfs.cleanPath(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(matches))
	for _, m := range matches {
		result = append(result, "/"+m)
	}
	return result, nil
}

// Files returns the sorted paths of the files under dir.
func (mfs *MapFileSystem) Files(dir string) []string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	prefix := mfs.cleanPath(dir)
	if prefix != "" {
		prefix += "/"
	}
	var result []string
	for p, file := range mfs.mapFS {
		if !file.Mode.IsDir() && strings.HasPrefix(p, prefix) {
			result = append(result, "/"+p)
		}
	}
	slices.Sort(result)
	return result
}

// Writes returns how many times name has been written.
func (mfs *MapFileSystem) Writes(name string) int {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.writes[mfs.cleanPath(name)]
}

func (mfs *MapFileSystem) cleanPath(p string) string {
	cleaned := path.Clean(p)
	if !path.IsAbs(cleaned) {
		cleaned = "/" + cleaned
	}
	return strings.TrimPrefix(cleaned, "/")
}

func parentOf(p string) string {
	dir := path.Dir(p)
	if dir == p {
		return ""
	}
	return dir
}

func (mfs *MapFileSystem) ensureParentDirLocked(filePath string) error {
	dir := path.Dir(filePath)
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}
	if file, exists := mfs.mapFS[dir]; exists && !file.Mode.IsDir() {
		return &fs.PathError{Op: "open", Path: filePath, Err: fmt.Errorf("not a directory")}
	}
	return nil
}
