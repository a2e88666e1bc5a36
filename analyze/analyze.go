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

// Package analyze populates the dependency graph from parsed programs.
//
// Module syntax (imports, re-exports, exports) is recorded symbol by
// symbol. References that reach another file's declarations without going
// through an import of the referencing file (globals, members of imported
// types) are recorded as whole-module edges.
package analyze

import (
	"context"
	"fmt"
	"path"
	"slices"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/ripple/depcache"
	"bennypowers.dev/ripple/diag"
	"bennypowers.dev/ripple/internal/logging"
	"bennypowers.dev/ripple/paths"
	"bennypowers.dev/ripple/program"
)

// Report is the outcome of one Analyze call.
type Report struct {
	// Analyzed lists the files whose edges were (re)built, sorted.
	Analyzed    []string
	Diagnostics []diag.Diagnostic
}

type typeKey struct {
	file string
	node uintptr
}

// Analyzer records the dependencies of in-scope files into a cache.
type Analyzer struct {
	cache  *depcache.Cache
	scope  *paths.Scope
	logger logging.Logger

	// types memoizes receiver types for one Analyze call.
	types map[typeKey]*program.Type
}

// New creates an analyzer writing into cache. Only files inside scope are
// analyzed, and only in-scope files become edge targets.
func New(cache *depcache.Cache, scope *paths.Scope, logger logging.Logger) *Analyzer {
	return &Analyzer{
		cache:  cache,
		scope:  scope,
		logger: logging.OrDiscard(logger),
	}
}

// Analyze walks every in-scope file of prog that the cache has not
// collected yet, then records resource dependencies of the walked files.
func (a *Analyzer) Analyze(ctx context.Context, prog program.Program) (*Report, error) {
	a.types = make(map[typeKey]*program.Type)
	defer func() { a.types = nil }()

	report := &Report{}
	for _, sf := range prog.SourceFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !a.scope.Contains(sf.Path) || a.cache.IsCollected(sf.Path) {
			continue
		}
		w := &fileWalker{a: a, prog: prog, sf: sf, wildcard: make(map[string]bool)}
		w.walk()
		w.flush()
		a.cache.MarkCollected(sf.Path)
		report.Analyzed = append(report.Analyzed, sf.Path)
		report.Diagnostics = append(report.Diagnostics, w.diags...)
	}

	visited := make(map[string]bool)
	for _, file := range report.Analyzed {
		a.collectResources(prog, file, visited)
	}

	slices.Sort(report.Analyzed)
	diag.Sort(report.Diagnostics)
	a.logger.Debug("analyzed", "files", len(report.Analyzed), "diagnostics", len(report.Diagnostics))
	return report, nil
}

// collectResources records file's resource dependencies, and theirs.
func (a *Analyzer) collectResources(prog program.Program, file string, visited map[string]bool) {
	if visited[file] {
		return
	}
	visited[file] = true
	for _, res := range prog.ResourceDependencies(file) {
		if !a.scope.Contains(res) {
			continue
		}
		a.cache.AddImport(file, res, depcache.Wildcard)
		a.collectResources(prog, res, visited)
	}
}

func (a *Analyzer) typeOf(prog program.Program, sf *program.SourceFile, n *ts.Node) *program.Type {
	key := typeKey{file: sf.Path, node: n.Id()}
	if t, ok := a.types[key]; ok {
		return t
	}
	t := prog.TypeOf(sf, n)
	a.types[key] = t
	return t
}

// fileWalker holds the state of one file's walk.
type fileWalker struct {
	a    *Analyzer
	prog program.Program
	sf   *program.SourceFile

	// wildcard collects whole-module edges found by reference; they are
	// flushed once per file.
	wildcard map[string]bool
	diags    []diag.Diagnostic
}

func (w *fileWalker) file() string { return w.sf.Path }

func (w *fileWalker) walk() {
	root := w.sf.Root()
	for i := uint(0); i < root.NamedChildCount(); i++ {
		stmt := root.NamedChild(i)
		switch stmt.Kind() {
		case "import_statement":
			w.importStatement(stmt)
			continue
		case "export_statement":
			if w.exportStatement(stmt) {
				continue
			}
		}
		w.references(stmt)
	}
}

func (w *fileWalker) flush() {
	targets := make([]string, 0, len(w.wildcard))
	for t := range w.wildcard {
		targets = append(targets, t)
	}
	slices.Sort(targets)
	for _, t := range targets {
		w.a.cache.AddImport(w.file(), t, depcache.Wildcard)
	}
}

func (w *fileWalker) importStatement(stmt *ts.Node) {
	targets := w.resolveSource(stmt.ChildByFieldName("source"))
	if len(targets) == 0 {
		return
	}

	var clause *ts.Node
	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		if c := stmt.NamedChild(i); c.Kind() == "import_clause" {
			clause = c
		}
	}

	var symbols []string
	hasDefault, wildcard := false, clause == nil
	if clause != nil {
		for i := uint(0); i < clause.NamedChildCount(); i++ {
			c := clause.NamedChild(i)
			switch c.Kind() {
			case "identifier":
				hasDefault = true
			case "namespace_import":
				wildcard = true
			case "named_imports":
				for j := uint(0); j < c.NamedChildCount(); j++ {
					spec := c.NamedChild(j)
					if spec.Kind() != "import_specifier" {
						continue
					}
					symbols = append(symbols, specifierName(w.sf, spec.ChildByFieldName("name")))
				}
			}
		}
	}
	switch {
	case wildcard || len(symbols) == 0:
		// Side-effect, namespace and default-only imports depend on the
		// whole module.
		symbols = []string{depcache.Wildcard}
	case hasDefault:
		symbols = append(symbols, "default")
	}

	for _, target := range targets {
		for _, sym := range symbols {
			w.a.cache.AddImport(w.file(), target, sym)
		}
	}
}

// exportStatement records an export statement. It reports whether the
// statement is fully handled; local declarations still need their bodies
// walked for references.
func (w *fileWalker) exportStatement(stmt *ts.Node) bool {
	file := w.file()
	if source := stmt.ChildByFieldName("source"); source != nil {
		targets := w.resolveSource(source)
		for i := uint(0); i < stmt.NamedChildCount(); i++ {
			c := stmt.NamedChild(i)
			switch c.Kind() {
			case "namespace_export":
				if c.NamedChildCount() == 0 {
					continue
				}
				w.a.cache.AddExport(file, specifierName(w.sf, c.NamedChild(0)))
				for _, target := range targets {
					w.a.cache.AddImport(file, target, depcache.Wildcard)
				}
				return true
			case "export_clause":
				for _, spec := range exportSpecifiers(w.sf, c) {
					for _, target := range targets {
						w.a.cache.AddReexport(file, target, depcache.Reexport{Import: spec.local, Export: spec.exported})
					}
				}
				return true
			}
		}
		for _, target := range targets {
			w.a.cache.AddReexport(file, target, depcache.WildcardReexport)
		}
		return true
	}

	isDefault := false
	for i := uint(0); i < stmt.ChildCount(); i++ {
		if stmt.Child(i).Kind() == "default" {
			isDefault = true
		}
	}
	if isDefault {
		w.a.cache.AddExport(file, "default")
		return false
	}
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		for _, name := range declaredNames(w.sf, decl) {
			w.a.cache.AddExport(file, name)
		}
		return false
	}
	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		if c := stmt.NamedChild(i); c.Kind() == "export_clause" {
			for _, spec := range exportSpecifiers(w.sf, c) {
				w.a.cache.AddExport(file, spec.exported)
				// `export { x }` reads x; a global x from another file
				// is a dependency like any other reference.
				if id := spec.localNode; id != nil && id.Kind() == "identifier" {
					w.reference(id)
				}
			}
			return true
		}
	}
	return false
}

// references walks n for references to other files: dynamic imports,
// identifiers bound outside this file's imports and typed member access.
func (w *fileWalker) references(n *ts.Node) {
	switch n.Kind() {
	case "import_statement", "export_clause", "namespace_export":
		return
	case "call_expression":
		if fn := n.ChildByFieldName("function"); fn != nil && fn.Kind() == "import" {
			w.dynamicImport(n)
		}
	case "identifier", "type_identifier", "shorthand_property_identifier":
		if !isDeclarationName(n) {
			w.reference(n)
		}
		return
	case "nested_type_identifier":
		// ns.Type: only the namespace part is a reference of this file.
		if module := n.ChildByFieldName("module"); module != nil {
			w.references(module)
		}
		return
	case "member_expression":
		if prop := n.ChildByFieldName("property"); prop != nil {
			w.member(n.ChildByFieldName("object"), w.sf.NodeText(prop))
		}
	case "subscript_expression":
		if name, ok := stringLiteral(w.sf, n.ChildByFieldName("index")); ok {
			w.member(n.ChildByFieldName("object"), name)
		}
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		w.references(n.NamedChild(i))
	}
}

// reference records an edge to the file declaring the identifier, unless
// the identifier is bound by an import of this file, which the import
// statement already records precisely.
func (w *fileWalker) reference(id *ts.Node) {
	sym := w.prog.SymbolAt(w.sf, id)
	if sym == nil || sym.Imported {
		return
	}
	w.addWildcard(sym.File)
}

// member records an edge to the file declaring the accessed member of
// object's type.
func (w *fileWalker) member(object *ts.Node, name string) {
	if object == nil || name == "" {
		return
	}
	t := w.a.typeOf(w.prog, w.sf, object)
	if t == nil {
		return
	}
	if prop := w.prog.Property(t, name); prop != nil {
		w.addWildcard(prop.File)
	}
}

func (w *fileWalker) addWildcard(target string) {
	if target == "" || target == w.file() || !w.a.scope.Contains(target) {
		return
	}
	w.wildcard[target] = true
}

func (w *fileWalker) dynamicImport(call *ts.Node) {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return
	}
	if _, ok := stringLiteral(w.sf, args.NamedChild(0)); !ok {
		return
	}
	for _, target := range w.resolveSource(args.NamedChild(0)) {
		w.a.cache.AddImport(w.file(), target, depcache.Wildcard)
	}
}

// resolveSource resolves a module specifier literal to in-scope targets.
// A specifier that resolves nowhere yields a resolution diagnostic.
func (w *fileWalker) resolveSource(source *ts.Node) []string {
	spec, ok := stringLiteral(w.sf, source)
	if !ok {
		return nil
	}
	var targets []string
	if resolved, err := w.prog.ResolveModule(spec, w.file()); err == nil {
		targets = []string{resolved}
	} else {
		targets = w.fallback(spec)
		if len(targets) == 0 {
			pos := source.StartPosition()
			w.diags = append(w.diags, diag.Diagnostic{
				File:     w.file(),
				Line:     int(pos.Row) + 1,
				Column:   int(pos.Column) + 1,
				Severity: diag.Error,
				Kind:     diag.KindResolution,
				Message:  fmt.Sprintf("cannot resolve module %q", spec),
			})
			return nil
		}
	}
	return slices.DeleteFunc(targets, func(t string) bool { return !w.a.scope.Contains(t) })
}

// fallback resolves relative specifiers the module resolver rejects, such
// as asset imports, by trying the literal path.
func (w *fileWalker) fallback(spec string) []string {
	if !program.IsRelative(spec) {
		return nil
	}
	literal := paths.Norm(path.Join(path.Dir(w.file()), spec))
	if !w.a.scope.Contains(literal) {
		return nil
	}
	if knownExtensions[paths.Ext(literal)] {
		if w.prog.FileExists(literal) {
			return []string{literal}
		}
		return nil
	}
	var found []string
	for _, ext := range fallbackExtensions {
		if w.prog.FileExists(literal + ext) {
			found = append(found, literal+ext)
		}
	}
	return found
}
