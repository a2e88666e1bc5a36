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
package program

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSourceCacheSize bounds the number of parsed files kept between
// generations.
const DefaultSourceCacheSize = 4096

// SourceCache keeps parsed files across build generations so unchanged
// files are not re-parsed.
//
// Trees are C allocations and the previous program may still hold nodes of
// a tree that leaves the cache. Removed and evicted files are therefore
// retired, and closed two sweeps later, once every program that could
// reference them has been replaced.
type SourceCache struct {
	files *lru.Cache[string, *SourceFile]

	mu      sync.Mutex
	retired []*SourceFile
	doomed  []*SourceFile

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewSourceCache creates a cache holding at most size parsed files.
func NewSourceCache(size int) (*SourceCache, error) {
	if size <= 0 {
		size = DefaultSourceCacheSize
	}
	c := &SourceCache{}
	files, err := lru.NewWithEvict(size, func(_ string, sf *SourceFile) {
		c.retire(sf)
	})
	if err != nil {
		return nil, err
	}
	c.files = files
	return c, nil
}

func (c *SourceCache) retire(sf *SourceFile) {
	c.mu.Lock()
	c.retired = append(c.retired, sf)
	c.mu.Unlock()
}

// Get returns the cached parse of path.
func (c *SourceCache) Get(path string) (*SourceFile, bool) {
	sf, ok := c.files.Get(path)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return sf, ok
}

// Add stores a parsed file, retiring any previous parse of the same path.
func (c *SourceCache) Add(sf *SourceFile) {
	if prev, ok := c.files.Peek(sf.Path); ok && prev != sf {
		c.retire(prev)
	}
	c.files.Add(sf.Path, sf)
}

// Remove drops path from the cache.
func (c *SourceCache) Remove(path string) {
	c.files.Remove(path)
}

// Len returns the number of cached files.
func (c *SourceCache) Len() int {
	return c.files.Len()
}

// Stats returns the lookup hit and miss counts since the cache was created.
func (c *SourceCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Sweep closes the trees retired before the previous sweep. Call it once
// per generation, after the new program has replaced the old one.
func (c *SourceCache) Sweep() {
	c.mu.Lock()
	doomed := c.doomed
	c.doomed = c.retired
	c.retired = nil
	c.mu.Unlock()

	for _, sf := range doomed {
		sf.Tree.Close()
	}
}

// Close releases every tree the cache holds or has retired.
func (c *SourceCache) Close() {
	c.Sweep()
	c.Sweep()
	for _, path := range c.files.Keys() {
		if sf, ok := c.files.Peek(path); ok {
			sf.Tree.Close()
		}
	}
	c.files.Purge()
	c.mu.Lock()
	c.retired = nil
	c.mu.Unlock()
}
