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
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// importBinding is a local name bound by an import declaration.
type importBinding struct {
	target string // resolved module path; empty when unresolved
	name   string // exported name in target, "default", or "*"
}

// exportBinding is an exported name. Local exports name a declaration of
// this file; re-exports name an export of another module.
type exportBinding struct {
	local    string
	reexport bool
	target   string
	name     string
}

// binding is the module scope of one file.
type binding struct {
	sf      *SourceFile
	decls   map[string]*ts.Node
	imports map[string]importBinding
	exports map[string]exportBinding
	stars   []string
	// globals are declarations visible to every file: all top-level
	// declarations of a script file, plus `declare global` blocks.
	globals map[string]*ts.Node
}

type resolveFunc func(specifier, containingFile string) (string, error)

// bind walks the top-level statements of sf.
func bind(sf *SourceFile, resolve resolveFunc) *binding {
	b := &binding{
		sf:      sf,
		decls:   make(map[string]*ts.Node),
		imports: make(map[string]importBinding),
		exports: make(map[string]exportBinding),
		globals: make(map[string]*ts.Node),
	}
	target := func(source *ts.Node) string {
		spec, ok := stringValue(sf, source)
		if !ok {
			return ""
		}
		resolved, err := resolve(spec, sf.Path)
		if err != nil {
			return ""
		}
		return resolved
	}

	isModule := false
	for _, stmt := range namedChildren(sf.Root()) {
		switch stmt.Kind() {
		case "import_statement":
			isModule = true
			b.bindImport(stmt, target(stmt.ChildByFieldName("source")))
		case "export_statement":
			isModule = true
			b.bindExport(stmt, target)
		case "ambient_declaration":
			b.bindAmbient(stmt)
		default:
			declare(sf, stmt, b.decls)
		}
	}

	if !isModule {
		for name, n := range b.decls {
			b.globals[name] = n
		}
	}
	return b
}

func (b *binding) bindImport(stmt *ts.Node, target string) {
	for _, clause := range namedChildren(stmt) {
		if clause.Kind() != "import_clause" {
			continue
		}
		for _, c := range namedChildren(clause) {
			switch c.Kind() {
			case "identifier":
				b.imports[b.sf.NodeText(c)] = importBinding{target: target, name: "default"}
			case "namespace_import":
				if id := firstNamedChildOfKind(c, "identifier"); id != nil {
					b.imports[b.sf.NodeText(id)] = importBinding{target: target, name: "*"}
				}
			case "named_imports":
				for _, spec := range namedChildren(c) {
					if spec.Kind() != "import_specifier" {
						continue
					}
					name := memberName(b.sf, spec.ChildByFieldName("name"))
					local := name
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						local = b.sf.NodeText(alias)
					}
					b.imports[local] = importBinding{target: target, name: name}
				}
			}
		}
	}
}

func (b *binding) bindExport(stmt *ts.Node, target func(*ts.Node) string) {
	if source := stmt.ChildByFieldName("source"); source != nil {
		t := target(source)
		if ns := firstNamedChildOfKind(stmt, "namespace_export"); ns != nil {
			if id := ns.NamedChild(0); id != nil {
				b.exports[memberName(b.sf, id)] = exportBinding{reexport: true, target: t, name: "*"}
			}
			return
		}
		if clause := firstNamedChildOfKind(stmt, "export_clause"); clause != nil {
			for _, spec := range exportSpecifiers(b.sf, clause) {
				b.exports[spec.exported] = exportBinding{reexport: true, target: t, name: spec.local}
			}
			return
		}
		if t != "" {
			b.stars = append(b.stars, t)
		}
		return
	}

	isDefault := hasChildOfKind(stmt, "default")
	if decl := stmt.ChildByFieldName("declaration"); decl != nil {
		names := declare(b.sf, decl, b.decls)
		if isDefault {
			local := "default"
			if len(names) > 0 {
				local = names[0]
			} else {
				b.decls[local] = decl
			}
			b.exports["default"] = exportBinding{local: local}
			return
		}
		for _, name := range names {
			b.exports[name] = exportBinding{local: name}
		}
		return
	}
	if value := stmt.ChildByFieldName("value"); value != nil && isDefault {
		if value.Kind() == "identifier" {
			b.exports["default"] = exportBinding{local: b.sf.NodeText(value)}
		} else {
			b.decls["default"] = value
			b.exports["default"] = exportBinding{local: "default"}
		}
		return
	}
	if clause := firstNamedChildOfKind(stmt, "export_clause"); clause != nil {
		for _, spec := range exportSpecifiers(b.sf, clause) {
			b.exports[spec.exported] = exportBinding{local: spec.local}
		}
	}
}

// bindAmbient handles `declare ...` at the top level. `declare global`
// blocks contribute globals; other ambient declarations are module
// declarations like any other.
func (b *binding) bindAmbient(stmt *ts.Node) {
	if hasChildOfKind(stmt, "global") {
		if block := firstNamedChildOfKind(stmt, "statement_block"); block != nil {
			for _, inner := range namedChildren(block) {
				declare(b.sf, inner, b.globals)
			}
		}
		return
	}
	declare(b.sf, stmt, b.decls)
}

// declare records the names n declares into scope and returns them.
func declare(sf *SourceFile, n *ts.Node, scope map[string]*ts.Node) []string {
	var names []string
	switch n.Kind() {
	case "lexical_declaration", "variable_declaration":
		for _, d := range namedChildren(n) {
			if d.Kind() != "variable_declarator" {
				continue
			}
			if id := d.ChildByFieldName("name"); id != nil && id.Kind() == "identifier" {
				name := sf.NodeText(id)
				scope[name] = d
				names = append(names, name)
			}
		}
	case "function_declaration", "generator_function_declaration", "function_signature",
		"class_declaration", "abstract_class_declaration", "interface_declaration",
		"type_alias_declaration", "enum_declaration", "internal_module", "module":
		if id := n.ChildByFieldName("name"); id != nil {
			name := sf.NodeText(id)
			scope[name] = n
			names = append(names, name)
		}
	case "ambient_declaration", "expression_statement":
		for _, c := range namedChildren(n) {
			names = append(names, declare(sf, c, scope)...)
		}
	}
	return names
}

type exportSpec struct {
	local    string
	exported string
}

func exportSpecifiers(sf *SourceFile, clause *ts.Node) []exportSpec {
	var specs []exportSpec
	for _, spec := range namedChildren(clause) {
		if spec.Kind() != "export_specifier" {
			continue
		}
		local := memberName(sf, spec.ChildByFieldName("name"))
		exported := local
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			exported = memberName(sf, alias)
		}
		specs = append(specs, exportSpec{local: local, exported: exported})
	}
	return specs
}

// Syntax helpers shared by the binder, checker and resource scanner.

func namedChildren(n *ts.Node) []*ts.Node {
	if n == nil {
		return nil
	}
	count := n.NamedChildCount()
	out := make([]*ts.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func firstNamedChildOfKind(n *ts.Node, kind string) *ts.Node {
	for _, c := range namedChildren(n) {
		if c.Kind() == kind {
			return c
		}
	}
	return nil
}

// hasChildOfKind also sees anonymous tokens such as "default".
func hasChildOfKind(n *ts.Node, kind string) bool {
	count := n.ChildCount()
	for i := uint(0); i < count; i++ {
		if c := n.Child(i); c != nil && c.Kind() == kind {
			return true
		}
	}
	return false
}

// stringValue returns the contents of a string literal or a template
// literal without substitutions.
func stringValue(sf *SourceFile, n *ts.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Kind() {
	case "string":
	case "template_string":
		if firstNamedChildOfKind(n, "template_substitution") != nil {
			return "", false
		}
	default:
		return "", false
	}
	text := sf.NodeText(n)
	if len(text) < 2 {
		return "", false
	}
	return text[1 : len(text)-1], true
}

// memberName returns the name an identifier, property name or string
// literal key spells.
func memberName(sf *SourceFile, n *ts.Node) string {
	if n == nil {
		return ""
	}
	if s, ok := stringValue(sf, n); ok {
		return s
	}
	return strings.TrimSpace(sf.NodeText(n))
}
