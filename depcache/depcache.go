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

// Package depcache stores the symbol-aware file dependency graph and
// answers which files are affected when a set of files changes.
//
// Every forward edge (file imports or re-exports from target) has a
// matching reverse entry (target is depended on by file) carrying the
// same symbol strength. Mutations keep the two sides in lockstep; a
// reverse entry without its forward edge is a programming error and
// panics.
package depcache

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"bennypowers.dev/ripple/paths"
)

// Wildcard stands for "every export of the target". Imports recorded with
// Wildcard are affected by any change to the target.
const Wildcard = "*"

// Reexport is a single renamed re-export: `export { Import as Export } from`.
type Reexport struct {
	Import string
	Export string
}

// WildcardReexport records `export * from`.
var WildcardReexport = Reexport{Import: Wildcard, Export: Wildcard}

type fileID int32

// symbolSet is either "all symbols" or an explicit set of names.
type symbolSet struct {
	all   bool
	names map[string]struct{}
}

func (s *symbolSet) add(sym string) {
	if s.all {
		return
	}
	if sym == Wildcard {
		s.all = true
		s.names = nil
		return
	}
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[sym] = struct{}{}
}

func (s *symbolSet) has(sym string) bool {
	if s.all {
		return true
	}
	_, ok := s.names[sym]
	return ok
}

func (s *symbolSet) merge(o *symbolSet) {
	if o.all {
		s.add(Wildcard)
		return
	}
	for n := range o.names {
		s.add(n)
	}
}

func (s *symbolSet) equal(o *symbolSet) bool {
	if s.all || o.all {
		return s.all == o.all
	}
	return maps.Equal(s.names, o.names)
}

func (s *symbolSet) list() []string {
	if s.all {
		return []string{Wildcard}
	}
	return slices.Sorted(maps.Keys(s.names))
}

// reexportSet holds what one file re-exports from one target. A file can
// both `export *` and rename names of the same target, so all and pairs
// are independent.
type reexportSet struct {
	all   bool
	pairs []Reexport
}

func (r *reexportSet) add(spec Reexport) bool {
	if spec == WildcardReexport {
		if r.all {
			return false
		}
		r.all = true
		return true
	}
	if slices.Contains(r.pairs, spec) {
		return false
	}
	r.pairs = append(r.pairs, spec)
	return true
}

// node is one file in the arena.
type node struct {
	path       string
	exports    map[string]struct{}
	imports    map[fileID]*symbolSet
	reexports  map[fileID]*reexportSet
	dependents map[fileID]*symbolSet
	collected  bool
}

func (n *node) hasForwardEdges() bool {
	return len(n.imports) > 0 || len(n.reexports) > 0
}

// Cache is the dependency graph store. The zero value is not usable;
// create one with New.
type Cache struct {
	mu    sync.RWMutex
	ids   map[string]fileID
	nodes []*node

	// exportMemo caches resolved export symbols per file. It is written
	// under the read lock, so it has its own mutex, and every mutation of
	// the graph discards it.
	memoMu     sync.Mutex
	exportMemo map[fileID][]string
}

// New creates an empty dependency cache.
func New() *Cache {
	return &Cache{
		ids:        make(map[string]fileID),
		exportMemo: make(map[fileID][]string),
	}
}

// intern returns the id for p, creating a node if needed. Write lock held.
func (c *Cache) intern(p string) fileID {
	if id, ok := c.ids[p]; ok {
		return id
	}
	id := fileID(len(c.nodes))
	c.ids[p] = id
	c.nodes = append(c.nodes, &node{
		path:       p,
		exports:    make(map[string]struct{}),
		imports:    make(map[fileID]*symbolSet),
		reexports:  make(map[fileID]*reexportSet),
		dependents: make(map[fileID]*symbolSet),
	})
	return id
}

func (c *Cache) lookup(p string) (fileID, bool) {
	id, ok := c.ids[p]
	return id, ok
}

func (c *Cache) resetMemo() {
	c.memoMu.Lock()
	clear(c.exportMemo)
	c.memoMu.Unlock()
}

// AddExport records that file exports symbol.
func (c *Cache) AddExport(file, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.resetMemo()

	for _, p := range paths.Related(paths.Norm(file)) {
		c.nodes[c.intern(p)].exports[symbol] = struct{}{}
	}
}

// AddImport records that file uses symbol from target. Pass Wildcard when
// the whole module is used.
func (c *Cache) AddImport(file, target, symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.resetMemo()

	for _, fp := range paths.Related(paths.Norm(file)) {
		for _, tp := range paths.Related(paths.Norm(target)) {
			f, t := c.intern(fp), c.intern(tp)
			set, ok := c.nodes[f].imports[t]
			if !ok {
				set = &symbolSet{}
				c.nodes[f].imports[t] = set
			}
			set.add(symbol)
			c.addDependent(t, f, symbol)
		}
	}
}

// AddReexport records that file re-exports from target.
func (c *Cache) AddReexport(file, target string, spec Reexport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.resetMemo()

	for _, fp := range paths.Related(paths.Norm(file)) {
		for _, tp := range paths.Related(paths.Norm(target)) {
			f, t := c.intern(fp), c.intern(tp)
			set, ok := c.nodes[f].reexports[t]
			if !ok {
				set = &reexportSet{}
				c.nodes[f].reexports[t] = set
			}
			if set.add(spec) {
				c.addDependent(t, f, spec.Import)
			}
		}
	}
}

func (c *Cache) addDependent(target, file fileID, symbol string) {
	set, ok := c.nodes[target].dependents[file]
	if !ok {
		set = &symbolSet{}
		c.nodes[target].dependents[file] = set
	}
	set.add(symbol)
}

// MarkCollected records that file has been analyzed in this generation.
func (c *Cache) MarkCollected(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range paths.Related(paths.Norm(file)) {
		c.nodes[c.intern(p)].collected = true
	}
}

// IsCollected reports whether file has been analyzed since it was last
// invalidated.
func (c *Cache) IsCollected(file string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.lookup(paths.Norm(file))
	return ok && c.nodes[id].collected
}

// Files returns every file the graph tracks: analyzed files plus every
// file something depends on. This is the watch set.
func (c *Cache) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for _, n := range c.nodes {
		if n.collected || len(n.dependents) > 0 {
			out = append(out, n.path)
		}
	}
	slices.Sort(out)
	return out
}

// Dependents returns the files with an edge into file.
func (c *Cache) Dependents(file string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.lookup(paths.Norm(file))
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.nodes[id].dependents))
	for d := range c.nodes[id].dependents {
		out = append(out, c.nodes[d].path)
	}
	slices.Sort(out)
	return out
}

// Imports returns the import edges of file as target -> symbols. A
// wildcard edge is reported as []string{Wildcard}.
func (c *Cache) Imports(file string) map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.lookup(paths.Norm(file))
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(c.nodes[id].imports))
	for t, set := range c.nodes[id].imports {
		out[c.nodes[t].path] = set.list()
	}
	return out
}

// Exports returns every symbol file exports, directly or by re-export.
func (c *Cache) Exports(file string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.lookup(paths.Norm(file))
	if !ok {
		return nil
	}
	return slices.Clone(c.exportSymbols(id))
}

// exportSymbols resolves the direct and re-exported symbols of root.
// Star re-exports are followed iteratively; cycles terminate through the
// visited set. `export *` never forwards "default". Read lock held.
func (c *Cache) exportSymbols(root fileID) []string {
	c.memoMu.Lock()
	if syms, ok := c.exportMemo[root]; ok {
		c.memoMu.Unlock()
		return syms
	}
	c.memoMu.Unlock()

	result := make(map[string]struct{})
	visited := map[fileID]bool{root: true}
	stack := []fileID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := c.nodes[id]
		for sym := range n.exports {
			if id != root && sym == "default" {
				continue
			}
			result[sym] = struct{}{}
		}
		for t, set := range n.reexports {
			if set.all && !visited[t] {
				visited[t] = true
				stack = append(stack, t)
			}
			for _, pair := range set.pairs {
				result[pair.Export] = struct{}{}
			}
		}
	}

	syms := slices.Sorted(maps.Keys(result))
	c.memoMu.Lock()
	c.exportMemo[root] = syms
	c.memoMu.Unlock()
	return syms
}

// translate maps symbol, as imported by file from target, to the names
// under which file re-exports it. A symbol that is not renamed keeps its
// name; under `export *` it also keeps its name beside any renames. Read
// lock held.
func (c *Cache) translate(file, target fileID, symbol string) []string {
	set, ok := c.nodes[file].reexports[target]
	if !ok {
		return []string{symbol}
	}
	var out []string
	if set.all {
		out = append(out, symbol)
	}
	for _, pair := range set.pairs {
		if pair.Import == symbol && !slices.Contains(out, pair.Export) {
			out = append(out, pair.Export)
		}
	}
	if len(out) == 0 {
		return []string{symbol}
	}
	return out
}

func (c *Cache) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	edges := 0
	for _, n := range c.nodes {
		edges += len(n.imports) + len(n.reexports)
	}
	return fmt.Sprintf("depcache(%d files, %d edges)", len(c.nodes), edges)
}
