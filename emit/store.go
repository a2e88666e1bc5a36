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
package emit

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"path"
	"sync"

	"github.com/zeebo/xxh3"

	"bennypowers.dev/ripple/fs"
)

// Store writes outputs and remembers the content hash of every output it
// wrote, so an unchanged output is never rewritten.
type Store struct {
	fs fs.FileSystem

	mu      sync.Mutex
	hashes  map[string]uint64   // output path -> content hash
	sources map[string][]string // source -> output paths
}

// NewStore creates a store writing through fsys.
func NewStore(fsys fs.FileSystem) *Store {
	return &Store{
		fs:      fsys,
		hashes:  make(map[string]uint64),
		sources: make(map[string][]string),
	}
}

// Write writes out unless its content hash equals the last one written to
// the same path. It reports whether the file was written.
func (s *Store) Write(out Output) (bool, error) {
	sum := xxh3.Hash(out.Contents)

	s.mu.Lock()
	prev, seen := s.hashes[out.Path]
	s.mu.Unlock()
	if seen && prev == sum {
		return false, nil
	}

	if err := s.fs.MkdirAll(path.Dir(out.Path), 0o755); err != nil {
		return false, fmt.Errorf("creating output directory for %s: %w", out.Path, err)
	}
	if err := fs.WriteFileAtomic(s.fs, out.Path, out.Contents, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", out.Path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, known := s.hashes[out.Path]; !known {
		s.sources[out.Source] = append(s.sources[out.Source], out.Path)
	}
	s.hashes[out.Path] = sum
	return true, nil
}

// Outputs returns the paths written for source.
func (s *Store) Outputs(source string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources[source]...)
}

// RemoveSource deletes every output written for a source that no longer
// exists.
func (s *Store) RemoveSource(source string) error {
	s.mu.Lock()
	outputs := s.sources[source]
	delete(s.sources, source)
	for _, p := range outputs {
		delete(s.hashes, p)
	}
	s.mu.Unlock()

	var errs []error
	for _, p := range outputs {
		if err := s.fs.Remove(p); err != nil && !errors.Is(err, iofs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
