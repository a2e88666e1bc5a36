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

// Package style caches stylesheet bundles and tracks which fragments each
// bundle pulled in, so a change to one fragment re-bundles only the
// stylesheets that include it.
package style

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"bennypowers.dev/ripple/paths"
)

// Output is a successful bundle.
type Output struct {
	Contents string
	// ReferencedFiles are every file the bundle read: the entry stylesheet,
	// imported fragments and embedded assets.
	ReferencedFiles []string
}

// Bundler bundles stylesheets.
type Bundler interface {
	BundleFile(ctx context.Context, path string) (*Output, error)
	BundleInline(ctx context.Context, data, containingFile string) (*Output, error)
}

// Result is a cached bundle. A failed bundle is cached too, with Err set,
// until one of its inputs changes.
type Result struct {
	Contents        string
	ReferencedFiles []string
	Err             error
}

// Tracker caches bundling results and the reference graph between
// stylesheets and the fragments they include.
type Tracker struct {
	bundler Bundler
	group   singleflight.Group

	mu      sync.Mutex
	results map[string]*Result
	refs    map[string]map[string]struct{} // bundle key -> referenced files
	revRefs map[string]map[string]struct{} // referenced file -> bundle keys
}

// NewTracker creates a tracker bundling through b.
func NewTracker(b Bundler) *Tracker {
	return &Tracker{
		bundler: b,
		results: make(map[string]*Result),
		refs:    make(map[string]map[string]struct{}),
		revRefs: make(map[string]map[string]struct{}),
	}
}

// Bundle returns the bundle of a stylesheet. resourceFile names an
// external stylesheet; when empty, data is bundled inline on behalf of
// containingFile. Results are cached under resourceFile, or containingFile
// for inline styles.
func (t *Tracker) Bundle(ctx context.Context, data, containingFile, resourceFile string) *Result {
	key := paths.Norm(containingFile)
	if resourceFile != "" {
		key = paths.Norm(resourceFile)
	}

	t.mu.Lock()
	cached, ok := t.results[key]
	t.mu.Unlock()
	if ok {
		return cached
	}

	v, _, _ := t.group.Do(key, func() (any, error) {
		t.mu.Lock()
		cached, ok := t.results[key]
		t.mu.Unlock()
		if ok {
			return cached, nil
		}

		var out *Output
		var err error
		if resourceFile != "" {
			out, err = t.bundler.BundleFile(ctx, key)
		} else {
			out, err = t.bundler.BundleInline(ctx, data, key)
		}

		res := &Result{Err: err}
		if err == nil {
			res.Contents = out.Contents
			res.ReferencedFiles = paths.NormAll(out.ReferencedFiles)
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		t.results[key] = res
		for _, ref := range res.ReferencedFiles {
			t.addRef(key, ref)
		}
		if resourceFile != "" {
			// A failed bundle still depends on its entry file.
			t.addRef(key, key)
		}
		return res, nil
	})
	res, ok := v.(*Result)
	if !ok {
		return &Result{Err: fmt.Errorf("bundling %s: unexpected result %T", key, v)}
	}
	return res
}

func (t *Tracker) addRef(key, ref string) {
	if t.refs[key] == nil {
		t.refs[key] = make(map[string]struct{})
	}
	t.refs[key][ref] = struct{}{}
	if t.revRefs[ref] == nil {
		t.revRefs[ref] = make(map[string]struct{})
	}
	t.revRefs[ref][key] = struct{}{}
}

// Invalidate drops the cached bundles that transitively include any
// modified file, along with their reference edges, and returns the
// reached bundle keys and fragments, sorted.
func (t *Tracker) Invalidate(modified []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	reached := make(map[string]struct{})
	queue := paths.NormAll(modified)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if _, seen := reached[curr]; seen {
			continue
		}
		_, known := t.revRefs[curr]
		_, cached := t.results[curr]
		if !known && !cached {
			continue
		}
		reached[curr] = struct{}{}
		for key := range t.revRefs[curr] {
			queue = append(queue, key)
		}
	}

	for key := range reached {
		delete(t.results, key)
		for ref := range t.refs[key] {
			delete(t.revRefs[ref], key)
			if len(t.revRefs[ref]) == 0 {
				delete(t.revRefs, ref)
			}
		}
		delete(t.refs, key)
	}
	return slices.Sorted(maps.Keys(reached))
}

// Files returns every stylesheet and fragment the tracker knows, sorted.
func (t *Tracker) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	files := make(map[string]struct{}, len(t.results)+len(t.revRefs))
	for key := range t.results {
		files[key] = struct{}{}
	}
	for ref := range t.revRefs {
		files[ref] = struct{}{}
	}
	return slices.Sorted(maps.Keys(files))
}
