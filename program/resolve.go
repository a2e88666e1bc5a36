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
	"fmt"
	"path"
	"strings"

	"bennypowers.dev/ripple/fs"
	"bennypowers.dev/ripple/packagejson"
	"bennypowers.dev/ripple/paths"
)

// codeExtensions are tried, in order, after an extensionless specifier.
var codeExtensions = []string{".ts", ".tsx", ".d.ts", ".js", ".json"}

// jsToTS maps an emitted extension to the source extensions TypeScript
// looks for first.
var jsToTS = map[string][]string{
	".js":  {".ts", ".tsx", ".d.ts"},
	".jsx": {".tsx", ".d.ts"},
	".mjs": {".mts", ".d.mts"},
	".cjs": {".cts", ".d.cts"},
}

// Resolver resolves module specifiers to files the way TypeScript's
// bundler resolution does: relative paths with extension substitution and
// index files, bare specifiers through node_modules package.json files.
type Resolver struct {
	fs         fs.FileSystem
	pkgs       *packagejson.MemoryCache
	conditions *packagejson.ResolveOptions
}

// NewResolver creates a resolver reading through fsys. pkgs may be shared
// between resolvers; conditions may be nil for the defaults.
func NewResolver(fsys fs.FileSystem, pkgs *packagejson.MemoryCache, conditions []string) *Resolver {
	if pkgs == nil {
		pkgs = packagejson.NewMemoryCache()
	}
	var opts *packagejson.ResolveOptions
	if len(conditions) > 0 {
		opts = &packagejson.ResolveOptions{Conditions: conditions}
	}
	return &Resolver{fs: fsys, pkgs: pkgs, conditions: opts}
}

// Resolve resolves specifier as imported from containingFile.
func (r *Resolver) Resolve(specifier, containingFile string) (string, error) {
	if specifier == "" {
		return "", fmt.Errorf("empty specifier: %w", ErrUnresolved)
	}
	if isBareSpecifier(specifier) {
		return r.resolveBare(specifier, path.Dir(containingFile))
	}
	if strings.Contains(specifier, "://") {
		return "", fmt.Errorf("%s: remote modules are not supported: %w", specifier, ErrUnresolved)
	}

	base := specifier
	if !strings.HasPrefix(specifier, "/") {
		base = path.Join(path.Dir(containingFile), specifier)
	}
	if resolved, ok := r.resolveFile(paths.Norm(base)); ok {
		return resolved, nil
	}
	return "", fmt.Errorf("%s from %s: %w", specifier, containingFile, ErrUnresolved)
}

// resolveFile tries base as a file, with substituted and appended
// extensions, then as a directory with an index file.
func (r *Resolver) resolveFile(base string) (string, bool) {
	ext := path.Ext(base)
	if alts, ok := jsToTS[ext]; ok {
		stem := strings.TrimSuffix(base, ext)
		for _, alt := range alts {
			if r.isFile(stem + alt) {
				return stem + alt, true
			}
		}
	}
	if isCodeExtension(ext) && r.isFile(base) {
		return base, true
	}
	for _, e := range codeExtensions {
		if r.isFile(base + e) {
			return base + e, true
		}
	}
	for _, e := range codeExtensions {
		if index := path.Join(base, "index"+e); r.isFile(index) {
			return index, true
		}
	}
	return "", false
}

// resolveBare walks up from dir looking for the package in node_modules,
// then for its @types counterpart.
func (r *Resolver) resolveBare(specifier, dir string) (string, error) {
	pkgName := getPackageName(specifier)
	subpath := "." + strings.TrimPrefix(specifier, pkgName)

	for _, name := range []string{pkgName, typesPackageName(pkgName)} {
		for d := dir; ; d = path.Dir(d) {
			pkgDir := path.Join(d, "node_modules", name)
			if resolved, ok := r.resolvePackage(pkgDir, subpath); ok {
				return resolved, nil
			}
			if d == "/" || d == "." {
				break
			}
		}
	}
	return "", fmt.Errorf("%s: %w", specifier, ErrUnresolved)
}

// resolvePackage resolves subpath inside the package at pkgDir.
func (r *Resolver) resolvePackage(pkgDir, subpath string) (string, bool) {
	pkg, err := r.pkgs.Load(r.fs, path.Join(pkgDir, "package.json"))
	if err != nil {
		// No package.json: a bare directory still resolves by path.
		if !r.fs.Exists(pkgDir) {
			return "", false
		}
		return r.resolveFile(path.Join(pkgDir, subpath))
	}

	entries, err := pkg.Entrypoints(subpath, r.conditions)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if resolved, ok := r.resolveFile(path.Join(pkgDir, entry)); ok {
			return resolved, true
		}
	}
	return "", false
}

// InvalidatePackage drops a cached package.json after it changed on disk.
func (r *Resolver) InvalidatePackage(pkgJSONPath string) {
	r.pkgs.Invalidate(pkgJSONPath)
}

func (r *Resolver) isFile(p string) bool {
	info, err := r.fs.Stat(p)
	return err == nil && !info.IsDir()
}

func isCodeExtension(ext string) bool {
	switch ext {
	case ".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs", ".json":
		return true
	}
	return false
}

// IsSourcePath reports whether p is a TypeScript file the host parses.
func IsSourcePath(p string) bool {
	switch path.Ext(p) {
	case ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}

// isBareSpecifier returns true if the specifier is a bare module specifier
// (needs to be resolved via node_modules).
func isBareSpecifier(specifier string) bool {
	if specifier == "" {
		return false
	}
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".." {
		return false
	}
	if strings.HasPrefix(specifier, "/") {
		return false
	}
	if strings.Contains(specifier, "://") {
		return false
	}
	return true
}

// IsRelative reports whether specifier is relative to the importing file.
func IsRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}

// getPackageName extracts the package name from a bare specifier.
func getPackageName(specifier string) string {
	// Handle scoped packages: @scope/package/path -> @scope/package
	if strings.HasPrefix(specifier, "@") {
		parts := strings.SplitN(specifier, "/", 3)
		if len(parts) >= 2 {
			return path.Join(parts[0], parts[1])
		}
		return specifier
	}
	// Regular package: package/path -> package
	parts := strings.SplitN(specifier, "/", 2)
	return parts[0]
}

// typesPackageName returns the DefinitelyTyped package for pkgName:
// "lodash" -> "@types/lodash", "@scope/pkg" -> "@types/scope__pkg".
func typesPackageName(pkgName string) string {
	if scope, name, ok := strings.Cut(strings.TrimPrefix(pkgName, "@"), "/"); ok && strings.HasPrefix(pkgName, "@") {
		return "@types/" + scope + "__" + name
	}
	return "@types/" + pkgName
}
