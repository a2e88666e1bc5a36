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
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"path"
	"runtime"
	"slices"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/sync/errgroup"

	"bennypowers.dev/ripple/diag"
	"bennypowers.dev/ripple/fs"
	"bennypowers.dev/ripple/internal/logging"
	"bennypowers.dev/ripple/packagejson"
	"bennypowers.dev/ripple/paths"
)

// DefaultInclude selects the root files of a project.
var DefaultInclude = []string{"**/*.ts", "**/*.tsx"}

// DefaultExclude keeps installed packages out of the root set. Their
// declaration files still join the program when a root imports them.
var DefaultExclude = []string{"**/node_modules/**"}

// Options configures a Host.
type Options struct {
	// Root is the directory Include and Exclude patterns are relative to.
	Root string
	// Include and Exclude are doublestar patterns selecting root files.
	Include []string
	Exclude []string
	// Conditions are the package.json export conditions, in priority order.
	Conditions []string
}

// Host builds programs from TypeScript sources with tree-sitter.
type Host struct {
	fs       fs.FileSystem
	opts     Options
	resolver *Resolver
	logger   logging.Logger
}

// NewHost creates a host reading the project through fsys.
func NewHost(fsys fs.FileSystem, opts Options, logger logging.Logger) *Host {
	opts.Root = paths.Norm(opts.Root)
	if len(opts.Include) == 0 {
		opts.Include = DefaultInclude
	}
	if opts.Exclude == nil {
		opts.Exclude = DefaultExclude
	}
	return &Host{
		fs:       fsys,
		opts:     opts,
		resolver: NewResolver(fsys, packagejson.NewMemoryCache(), opts.Conditions),
		logger:   logging.OrDiscard(logger),
	}
}

// Resolver returns the module resolver programs of this host share.
func (h *Host) Resolver() *Resolver {
	return h.resolver
}

// InvalidatePackages implements PackageTracker.
func (h *Host) InvalidatePackages(changed []string) {
	for _, f := range changed {
		if path.Base(f) == "package.json" {
			h.resolver.InvalidatePackage(paths.Norm(f))
		}
	}
}

// PackageFiles implements PackageTracker.
func (h *Host) PackageFiles() []string {
	return h.resolver.pkgs.Loaded()
}

// Roots returns the root files selected by the include and exclude
// patterns, sorted.
func (h *Host) Roots() ([]string, error) {
	scope := paths.NewScope([]string{h.opts.Root}, h.opts.Exclude)
	seen := make(map[string]bool)
	var roots []string
	for _, pattern := range h.opts.Include {
		matches, err := h.fs.Glob(path.Join(h.opts.Root, pattern))
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			m = paths.Norm(m)
			if seen[m] || !IsSourcePath(m) || !scope.Contains(m) {
				continue
			}
			seen[m] = true
			roots = append(roots, m)
		}
	}
	slices.Sort(roots)
	return roots, nil
}

// CreateProgram parses the root files and everything they import,
// reusing parses from cache, and binds each file's module scope.
func (h *Host) CreateProgram(ctx context.Context, cache *SourceCache) (Program, error) {
	h.resolver.pkgs.ForgetFailures()
	roots, err := h.Roots()
	if err != nil {
		return nil, err
	}

	p := &hostProgram{
		host:     h,
		files:    make(map[string]*SourceFile),
		bindings: make(map[string]*binding),
		globals:  make(map[string]global),
	}

	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		seen[r] = true
	}
	for batch := roots; len(batch) > 0; {
		parsed := make([]*SourceFile, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i, file := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				sf, err := h.load(file, cache)
				parsed[i] = sf
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []string
		for _, sf := range parsed {
			if sf == nil {
				continue
			}
			p.files[sf.Path] = sf
			for _, imp := range sf.Imports {
				resolved, err := p.ResolveModule(imp.Specifier, sf.Path)
				if err != nil || seen[resolved] || !IsSourcePath(resolved) {
					continue
				}
				seen[resolved] = true
				next = append(next, resolved)
			}
		}
		batch = next
	}

	p.order = make([]*SourceFile, 0, len(p.files))
	for _, sf := range p.files {
		p.order = append(p.order, sf)
	}
	slices.SortFunc(p.order, func(a, b *SourceFile) int { return strings.Compare(a.Path, b.Path) })

	bound := make([]*binding, len(p.order))
	var wg sync.WaitGroup
	for i, sf := range p.order {
		wg.Go(func() {
			bound[i] = bind(sf, p.ResolveModule)
		})
	}
	wg.Wait()
	for _, b := range bound {
		p.bindings[b.sf.Path] = b
		for name, n := range b.globals {
			if _, dup := p.globals[name]; !dup {
				p.globals[name] = global{b: b, node: n}
			}
		}
	}

	h.logger.Debug("program created", "roots", len(roots), "files", len(p.order))
	return p, nil
}

// load returns the parse of file, from cache when possible. A file that
// no longer exists yields nil.
func (h *Host) load(file string, cache *SourceCache) (*SourceFile, error) {
	if cache != nil {
		if sf, ok := cache.Get(file); ok {
			return sf, nil
		}
	}
	content, err := h.fs.ReadFile(file)
	if errors.Is(err, iofs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	sf, err := Parse(file, content)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Add(sf)
	}
	return sf, nil
}

type global struct {
	b    *binding
	node *ts.Node
}

type resolution struct {
	path string
	err  error
}

// hostProgram implements Program over bound tree-sitter files.
type hostProgram struct {
	host     *Host
	files    map[string]*SourceFile
	order    []*SourceFile
	bindings map[string]*binding
	globals  map[string]global

	resolved   sync.Map // dir + "\x00" + specifier -> resolution
	components sync.Map // path -> *componentResources
	assets     sync.Map // template path -> []string
}

func (p *hostProgram) SourceFiles() []*SourceFile {
	return slices.Clone(p.order)
}

func (p *hostProgram) SourceFile(path string) (*SourceFile, bool) {
	sf, ok := p.files[path]
	return sf, ok
}

func (p *hostProgram) ResolveModule(specifier, containingFile string) (string, error) {
	key := path.Dir(containingFile) + "\x00" + specifier
	if r, ok := p.resolved.Load(key); ok {
		res := r.(resolution)
		return res.path, res.err
	}
	resolved, err := p.host.resolver.Resolve(specifier, containingFile)
	p.resolved.Store(key, resolution{path: resolved, err: err})
	return resolved, err
}

func (p *hostProgram) FileExists(path string) bool {
	return p.host.resolver.isFile(path)
}

func (p *hostProgram) SymbolAt(sf *SourceFile, node *ts.Node) *Symbol {
	b := p.bindings[sf.Path]
	if b == nil || node == nil {
		return nil
	}
	sym, viaImport := p.symbolAt(b, node)
	if sym != nil {
		sym.Imported = viaImport
	}
	return sym
}

func (p *hostProgram) TypeOf(sf *SourceFile, node *ts.Node) *Type {
	b := p.bindings[sf.Path]
	if b == nil {
		return nil
	}
	return p.typeOf(b, node, 0)
}

func (p *hostProgram) Property(t *Type, name string) *Symbol {
	return p.property(t, name, 0)
}

func (p *hostProgram) ResourceDependencies(file string) []string {
	if sf, ok := p.files[file]; ok {
		res := p.componentResources(sf)
		var out []string
		for _, f := range slices.Concat(res.templates, res.styleFiles) {
			if p.FileExists(f) && !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
		return out
	}
	if path.Ext(file) == ".html" {
		return p.templateAssets(file)
	}
	return nil
}

func (p *hostProgram) Stylesheets(sf *SourceFile) []StyleResource {
	res := p.componentResources(sf)
	out := make([]StyleResource, 0, len(res.styleFiles)+len(res.inlineStyles))
	for _, f := range res.styleFiles {
		out = append(out, StyleResource{File: f})
	}
	for _, data := range res.inlineStyles {
		out = append(out, StyleResource{Data: data})
	}
	return out
}

func (p *hostProgram) Diagnostics(sf *SourceFile) []diag.Diagnostic {
	return syntaxDiagnostics(sf)
}

func (p *hostProgram) componentResources(sf *SourceFile) *componentResources {
	if res, ok := p.components.Load(sf.Path); ok {
		return res.(*componentResources)
	}
	res, err := scanComponents(sf)
	if err != nil {
		p.host.logger.Warn("scanning component decorators", "file", sf.Path, "err", err)
		res = &componentResources{}
	}
	actual, _ := p.components.LoadOrStore(sf.Path, res)
	return actual.(*componentResources)
}

func (p *hostProgram) templateAssets(file string) []string {
	if assets, ok := p.assets.Load(file); ok {
		return assets.([]string)
	}
	content, err := p.host.fs.ReadFile(file)
	if err != nil {
		return nil
	}
	var existing []string
	for _, a := range templateAssets(file, content) {
		if p.FileExists(a) {
			existing = append(existing, a)
		}
	}
	actual, _ := p.assets.LoadOrStore(file, existing)
	return actual.([]string)
}
