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
package packagejson

import (
	"slices"
	"sync"
	"sync/atomic"

	"bennypowers.dev/ripple/fs"
)

// cacheEntry holds one load result and coordinates concurrent loading.
type cacheEntry struct {
	pkg    *PackageJSON
	err    error
	once   sync.Once
	loaded atomic.Bool
	failed atomic.Bool
}

// MemoryCache is a thread-safe cache of parsed package.json files keyed by
// path. Failed loads are cached until ForgetFailures, which the host calls
// at the start of each program, so a missing package.json is probed once
// per generation. The module resolver shares one cache across all parse
// workers; the compiler invalidates entries when a package.json changes.
type MemoryCache struct {
	entries sync.Map // map[string]*cacheEntry
}

// NewMemoryCache creates a new in-memory cache for package.json files.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

// Load returns the parsed package.json at path, reading it through fsys
// on first use. Only one goroutine parses a given path; others wait for
// its result.
func (c *MemoryCache) Load(fsys fs.FileSystem, path string) (*PackageJSON, error) {
	actual, _ := c.entries.LoadOrStore(path, &cacheEntry{})
	entry := actual.(*cacheEntry)
	entry.once.Do(func() {
		entry.pkg, entry.err = ParseFile(fsys, path)
		if entry.err != nil {
			entry.failed.Store(true)
		} else {
			entry.loaded.Store(true)
		}
	})
	return entry.pkg, entry.err
}

// Invalidate removes the entry for path.
func (c *MemoryCache) Invalidate(path string) {
	c.entries.Delete(path)
}

// ForgetFailures removes the entries whose load failed, so the next Load
// probes the filesystem again.
func (c *MemoryCache) ForgetFailures() {
	c.entries.Range(func(key, value any) bool {
		if value.(*cacheEntry).failed.Load() {
			c.entries.Delete(key)
		}
		return true
	})
}

// Loaded returns the sorted paths of the package.json files parsed
// successfully.
func (c *MemoryCache) Loaded() []string {
	var out []string
	c.entries.Range(func(key, value any) bool {
		if value.(*cacheEntry).loaded.Load() {
			out = append(out, key.(string))
		}
		return true
	})
	slices.Sort(out)
	return out
}

// Clear removes every entry.
func (c *MemoryCache) Clear() {
	c.entries.Clear()
}
