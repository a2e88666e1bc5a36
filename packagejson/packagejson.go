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
// Package packagejson parses package.json files and resolves the entry
// points TypeScript reads when a module imports a bare specifier.
package packagejson

import (
	"encoding/json"
	"errors"
	"strings"

	"bennypowers.dev/ripple/fs"
)

// workspacesObjectFormat represents the object format for workspaces field.
// Used by yarn classic with nohoist: {"packages": [...], "nohoist": [...]}
type workspacesObjectFormat struct {
	Packages []string `json:"packages"`
}

// ErrNotExported is returned when a subpath is not exported by the package.
var ErrNotExported = errors.New("not exported by package.json")

// DefaultConditions is the export condition priority used for type
// resolution: declarations first, then the ESM and default entries.
var DefaultConditions = []string{"types", "import", "default"}

// ResolveOptions configures how conditional exports are resolved.
type ResolveOptions struct {
	// Conditions is the ordered list of conditions to try when resolving exports.
	// If nil, defaults to DefaultConditions.
	Conditions []string
}

// PackageJSON represents the subset of package.json the module resolver reads.
type PackageJSON struct {
	Name          string          `json:"name"`
	Version       string          `json:"version"`
	Main          string          `json:"main,omitempty"`
	Module        string          `json:"module,omitempty"`
	Types         string          `json:"types,omitempty"`
	Typings       string          `json:"typings,omitempty"`
	Exports       any             `json:"exports,omitempty"`
	RawWorkspaces json.RawMessage `json:"workspaces,omitempty"`
}

// WorkspacePatterns returns the workspace glob patterns from the workspaces field.
// Handles both array format ["packages/*"] and object format {"packages": ["libs/*"]}.
func (pkg *PackageJSON) WorkspacePatterns() []string {
	if len(pkg.RawWorkspaces) == 0 {
		return nil
	}

	var patterns []string
	if err := json.Unmarshal(pkg.RawWorkspaces, &patterns); err == nil {
		return patterns
	}

	var obj workspacesObjectFormat
	if err := json.Unmarshal(pkg.RawWorkspaces, &obj); err == nil {
		return obj.Packages
	}

	return nil
}

// Parse parses package.json data.
func Parse(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ParseFile parses a package.json file.
func ParseFile(fs fs.FileSystem, path string) (*PackageJSON, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Entrypoints returns the candidate files for a subpath of the package,
// relative to the package directory and without a leading "./", in the
// order a type-aware resolver should try them.
//
// When the package declares "exports", only what exports allows is
// returned. Otherwise the root subpath falls back to types, typings,
// module and main, and other subpaths map directly onto the directory.
func (pkg *PackageJSON) Entrypoints(subpath string, opts *ResolveOptions) ([]string, error) {
	if pkg.Exports != nil {
		resolved, err := pkg.ResolveExport(subpath, opts)
		if err != nil {
			return nil, err
		}
		return []string{resolved}, nil
	}

	if subpath != "." {
		return []string{trimDotSlash(subpath)}, nil
	}

	var candidates []string
	for _, field := range []string{pkg.Types, pkg.Typings, pkg.Module, pkg.Main} {
		if field != "" {
			candidates = append(candidates, trimDotSlash(field))
		}
	}
	return append(candidates, "index"), nil
}

// ResolveExport resolves a subpath export to its target file path.
// The subpath should be "." for the main export or "./subpath" for subpath
// exports. Subpath patterns such as "./*" are expanded.
// Returns the resolved path without leading "./".
// Pass nil for opts to use DefaultConditions.
func (pkg *PackageJSON) ResolveExport(subpath string, opts *ResolveOptions) (string, error) {
	switch exports := pkg.Exports.(type) {
	case nil:
		if pkg.Main != "" && subpath == "." {
			return trimDotSlash(pkg.Main), nil
		}
		return "", ErrNotExported

	case string:
		if subpath == "." {
			return trimDotSlash(exports), nil
		}
		return "", ErrNotExported

	case map[string]any:
		if !hasSubpathKeys(exports) {
			if subpath == "." {
				return resolveConditions(exports, opts)
			}
			return "", ErrNotExported
		}
		if value, ok := exports[subpath]; ok {
			return resolveExportValue(value, opts, "")
		}
		if pattern, match, ok := matchPattern(exports, subpath); ok {
			return resolveExportValue(exports[pattern], opts, match)
		}
	}
	return "", ErrNotExported
}

func hasSubpathKeys(exports map[string]any) bool {
	for key := range exports {
		if strings.HasPrefix(key, ".") {
			return true
		}
	}
	return false
}

// matchPattern finds the most specific "./prefix*suffix" key matching
// subpath and returns it with the text the star stands for.
func matchPattern(exports map[string]any, subpath string) (string, string, bool) {
	best, match, bestLen := "", "", -1
	for key := range exports {
		star := strings.Index(key, "*")
		if star < 0 {
			continue
		}
		prefix, suffix := key[:star], key[star+1:]
		if len(subpath) < len(prefix)+len(suffix) ||
			!strings.HasPrefix(subpath, prefix) ||
			!strings.HasSuffix(subpath, suffix) {
			continue
		}
		if len(prefix) > bestLen {
			best, bestLen = key, len(prefix)
			match = subpath[len(prefix) : len(subpath)-len(suffix)]
		}
	}
	return best, match, best != ""
}

// resolveExportValue resolves one exports value: a target string, a
// condition map, or a fallback array. star replaces "*" in the target.
func resolveExportValue(value any, opts *ResolveOptions, star string) (string, error) {
	switch v := value.(type) {
	case string:
		return trimDotSlash(strings.ReplaceAll(v, "*", star)), nil
	case map[string]any:
		resolved, err := resolveConditions(v, opts)
		if err != nil {
			return "", err
		}
		return strings.ReplaceAll(resolved, "*", star), nil
	case []any:
		for _, item := range v {
			if resolved, err := resolveExportValue(item, opts, star); err == nil {
				return resolved, nil
			}
		}
	}
	return "", ErrNotExported
}

// resolveConditions resolves a conditional export map to a path.
// Tries each condition in opts.Conditions order, recursing into nested maps.
func resolveConditions(conditions map[string]any, opts *ResolveOptions) (string, error) {
	conditionList := DefaultConditions
	if opts != nil && len(opts.Conditions) > 0 {
		conditionList = opts.Conditions
	}

	for _, cond := range conditionList {
		value, ok := conditions[cond]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			if result, err := resolveConditions(v, opts); err == nil {
				return result, nil
			}
		case string:
			return trimDotSlash(v), nil
		}
	}

	return "", ErrNotExported
}

// trimDotSlash removes a leading "./" from a path.
func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}
