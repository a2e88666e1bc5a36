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

// Package paths defines file identity for the build graph: normalized
// absolute paths, declaration/emitted path pairs and the in-scope test.
package paths

import (
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Norm returns the canonical identity of p: absolute, cleaned, with
// forward slashes.
func Norm(p string) string {
	if p == "" {
		return ""
	}
	if !filepath.IsAbs(p) && !strings.HasPrefix(p, "/") {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
	}
	return path.Clean(filepath.ToSlash(p))
}

// NormAll normalizes every path in ps, dropping empty entries.
func NormAll(ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if n := Norm(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// IsChild reports whether child is parent or lives below it.
func IsChild(child, parent string) bool {
	if parent == "/" {
		return strings.HasPrefix(child, "/")
	}
	return child == parent || strings.HasPrefix(child, parent+"/")
}

// Related returns p together with its linked path: a declaration file
// "x.d.ts" is paired with "x.js" and vice versa. Other paths stand alone.
func Related(p string) []string {
	switch {
	case strings.HasSuffix(p, ".d.ts"):
		return []string{p, strings.TrimSuffix(p, ".d.ts") + ".js"}
	case strings.HasSuffix(p, ".js"):
		return []string{p, strings.TrimSuffix(p, ".js") + ".d.ts"}
	default:
		return []string{p}
	}
}

// IsDeclaration reports whether p is a TypeScript declaration file.
func IsDeclaration(p string) bool {
	return strings.HasSuffix(p, ".d.ts") ||
		strings.HasSuffix(p, ".d.mts") ||
		strings.HasSuffix(p, ".d.cts")
}

// Ext returns the extension of p, treating ".d.ts" as a single extension.
func Ext(p string) string {
	if strings.HasSuffix(p, ".d.ts") {
		return ".d.ts"
	}
	return path.Ext(p)
}

// Scope decides which files belong to the project graph.
// A path is in scope when it lives under one of the roots and matches
// none of the exclude globs. Globs are matched against the path relative
// to the root that contains it.
type Scope struct {
	roots   []string
	exclude []string
}

// NewScope creates a scope over roots, minus anything matching exclude.
func NewScope(roots, exclude []string) *Scope {
	rs := NormAll(roots)
	slices.Sort(rs)
	rs = slices.Compact(rs)
	return &Scope{roots: rs, exclude: slices.Clone(exclude)}
}

// Roots returns the scope roots.
func (s *Scope) Roots() []string {
	return slices.Clone(s.roots)
}

// Contains reports whether p is in scope.
func (s *Scope) Contains(p string) bool {
	for _, root := range s.roots {
		if !IsChild(p, root) {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
		if !s.excluded(rel) {
			return true
		}
	}
	return false
}

func (s *Scope) excluded(rel string) bool {
	for _, pattern := range s.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
