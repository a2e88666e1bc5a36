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
package depcache

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"bennypowers.dev/ripple/paths"
)

// item is one unit of the affected-set traversal. An empty symbol with
// structural set means "the file changed without naming a symbol".
type item struct {
	id         fileID
	symbol     string
	structural bool
}

func (it item) key() string {
	if it.structural {
		return fmt.Sprintf("%d#", it.id)
	}
	return fmt.Sprintf("%d#%s", it.id, it.symbol)
}

// seeds returns the traversal items for a changed file: one per export
// symbol, or a single structural item when the file exports nothing.
func (c *Cache) seeds(id fileID) []item {
	syms := c.exportSymbols(id)
	if len(syms) == 0 {
		return []item{{id: id, structural: true}}
	}
	items := make([]item, len(syms))
	for i, s := range syms {
		items[i] = item{id: id, symbol: s}
	}
	return items
}

// AffectedFiles returns every file semantically affected by changes to
// modified, including the modified files and their linked paths.
func (c *Cache) AffectedFiles(modified []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.affectedLocked(modified)
}

func (c *Cache) affectedLocked(modified []string) []string {
	result := make(map[string]struct{})
	visited := make(map[string]bool)
	var queue []item

	enqueue := func(it item) {
		k := it.key()
		if visited[k] {
			return
		}
		visited[k] = true
		queue = append(queue, it)
	}

	for _, m := range modified {
		for _, p := range paths.Related(paths.Norm(m)) {
			result[p] = struct{}{}
			id, ok := c.lookup(p)
			if !ok {
				continue
			}
			for _, it := range c.seeds(id) {
				enqueue(it)
			}
		}
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		for dep, edge := range c.nodes[curr.id].dependents {
			if !curr.structural && !edge.has(curr.symbol) {
				continue
			}
			result[c.nodes[dep].path] = struct{}{}
			if curr.structural {
				for _, it := range c.seeds(dep) {
					enqueue(it)
				}
				continue
			}
			for _, sym := range c.translate(dep, curr.id, curr.symbol) {
				enqueue(item{id: dep, symbol: sym})
			}
		}
	}

	out := make([]string, 0, len(result))
	for p := range result {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Invalidate removes every table entry keyed by a file affected by
// modified and returns that affected set.
//
// Files that depend on an affected file without being affected themselves
// lose their forward edges too, so the reverse index stays the exact
// transpose; they are marked uncollected and rebuilt by the next analysis.
func (c *Cache) Invalidate(modified []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.resetMemo()

	affected := c.affectedLocked(modified)

	stale := make(map[fileID]struct{})
	for _, p := range affected {
		id, ok := c.lookup(p)
		if !ok {
			continue
		}
		stale[id] = struct{}{}
		for dep := range c.nodes[id].dependents {
			stale[dep] = struct{}{}
		}
	}

	for id := range stale {
		c.clearForward(id)
	}

	for _, p := range affected {
		if id, ok := c.lookup(p); ok && len(c.nodes[id].dependents) > 0 {
			panic(fmt.Sprintf("depcache: invariant violated: %s still has dependents after invalidation", p))
		}
	}
	return affected
}

// clearForward drops the exports, forward edges and collected flag of id,
// removing the reverse entries they own. Write lock held.
func (c *Cache) clearForward(id fileID) {
	n := c.nodes[id]
	targets := make(map[fileID]struct{}, len(n.imports)+len(n.reexports))
	for t := range n.imports {
		targets[t] = struct{}{}
	}
	for t := range n.reexports {
		targets[t] = struct{}{}
	}
	for t := range targets {
		if _, ok := c.nodes[t].dependents[id]; !ok {
			panic(fmt.Sprintf("depcache: invariant violated: %s -> %s has no reverse entry", n.path, c.nodes[t].path))
		}
		delete(c.nodes[t].dependents, id)
	}
	clear(n.imports)
	clear(n.reexports)
	clear(n.exports)
	n.collected = false
}

// Verify checks that the reverse index is the exact transpose of the
// import and re-export tables.
func (c *Cache) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expected := make(map[fileID]map[fileID]*symbolSet)
	want := func(t, f fileID) *symbolSet {
		if expected[t] == nil {
			expected[t] = make(map[fileID]*symbolSet)
		}
		if expected[t][f] == nil {
			expected[t][f] = &symbolSet{}
		}
		return expected[t][f]
	}
	for f, n := range c.nodes {
		for t, set := range n.imports {
			want(t, fileID(f)).merge(set)
		}
		for t, set := range n.reexports {
			s := want(t, fileID(f))
			if set.all {
				s.add(Wildcard)
				continue
			}
			for _, pair := range set.pairs {
				s.add(pair.Import)
			}
		}
	}

	var errs []error
	for t, n := range c.nodes {
		exp := expected[fileID(t)]
		if len(exp) != len(n.dependents) {
			errs = append(errs, fmt.Errorf("%s: %d reverse entries, want %d", n.path, len(n.dependents), len(exp)))
			continue
		}
		for f, set := range n.dependents {
			if e, ok := exp[f]; !ok || !e.equal(set) {
				errs = append(errs, fmt.Errorf("%s <- %s: reverse entry %v does not match forward edges", n.path, c.nodes[f].path, set.list()))
			}
		}
	}
	return errors.Join(errs...)
}

// TreeNode is one file in the affected-file tree.
type TreeNode struct {
	File     string      `json:"file"`
	Symbol   string      `json:"symbol,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// AffectedTree returns the propagation paths from each modified file to
// the files it affects, for diagnostic output. Each modified file roots a
// tree; a file reached twice with the same symbol appears once.
func (c *Cache) AffectedTree(modified []string) []*TreeNode {
	c.mu.RLock()
	defer c.mu.RUnlock()

	built := make(map[string]*TreeNode)

	var build func(it item) *TreeNode
	build = func(it item) *TreeNode {
		if n, ok := built[it.key()]; ok {
			return n
		}
		tn := &TreeNode{File: c.nodes[it.id].path, Symbol: it.symbol}
		built[it.key()] = tn

		deps := make([]fileID, 0, len(c.nodes[it.id].dependents))
		for dep := range c.nodes[it.id].dependents {
			deps = append(deps, dep)
		}
		slices.SortFunc(deps, func(a, b fileID) int { return strings.Compare(c.nodes[a].path, c.nodes[b].path) })

		for _, dep := range deps {
			edge := c.nodes[it.id].dependents[dep]
			if !it.structural && !edge.has(it.symbol) {
				continue
			}
			var next []item
			if it.structural {
				next = c.seeds(dep)
			} else {
				for _, sym := range c.translate(dep, it.id, it.symbol) {
					next = append(next, item{id: dep, symbol: sym})
				}
			}
			for _, n := range next {
				if _, seen := built[n.key()]; seen {
					continue
				}
				tn.Children = append(tn.Children, build(n))
			}
		}
		return tn
	}

	var roots []*TreeNode
	for _, m := range modified {
		for _, p := range paths.Related(paths.Norm(m)) {
			id, ok := c.lookup(p)
			if !ok {
				roots = append(roots, &TreeNode{File: p})
				continue
			}
			root := &TreeNode{File: p}
			for _, it := range c.seeds(id) {
				root.Children = append(root.Children, build(it).Children...)
			}
			roots = append(roots, root)
		}
	}
	return roots
}

// FormatTree renders nodes as an indented tree.
func FormatTree(nodes []*TreeNode) string {
	var b strings.Builder
	var walk func(n *TreeNode, depth int)
	walk = func(n *TreeNode, depth int) {
		b.WriteString(strings.Repeat("  ", depth))
		b.WriteString(n.File)
		if n.Symbol != "" {
			b.WriteString("#")
			b.WriteString(n.Symbol)
		}
		b.WriteString("\n")
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	for _, n := range nodes {
		walk(n, 0)
	}
	return b.String()
}
