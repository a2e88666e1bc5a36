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
package analyze

import (
	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/ripple/program"
)

// knownExtensions are taken literally when a relative specifier does not
// resolve as a module: code, templates, stylesheets and bundled assets.
var knownExtensions = map[string]bool{
	".ts": true, ".d.ts": true, ".js": true, ".json": true,
	".html": true, ".css": true, ".scss": true,
	".png": true, ".jpeg": true, ".jpg": true, ".jfif": true, ".gif": true, ".svg": true,
	".woff": true, ".woff2": true, ".ttf": true, ".ttc": true, ".eot": true, ".ico": true, ".otf": true,
	".csv": true, ".xlsx": true, ".xls": true, ".pptx": true, ".ppt": true, ".docx": true, ".doc": true,
	".zip": true, ".pfx": true, ".pkl": true, ".mp3": true, ".ogg": true,
}

// fallbackExtensions are appended to an extensionless relative specifier
// the resolver could not find.
var fallbackExtensions = []string{".ts", ".js", ".d.ts", ".json"}

// stringLiteral returns the value of a string literal node.
func stringLiteral(sf *program.SourceFile, n *ts.Node) (string, bool) {
	if n == nil || n.Kind() != "string" {
		return "", false
	}
	text := sf.NodeText(n)
	if len(text) < 2 {
		return "", false
	}
	return text[1 : len(text)-1], true
}

// specifierName returns an import or export name, which may be an
// identifier or a string literal (`import { "a-b" as ab }`).
func specifierName(sf *program.SourceFile, n *ts.Node) string {
	if n == nil {
		return ""
	}
	if s, ok := stringLiteral(sf, n); ok {
		return s
	}
	return sf.NodeText(n)
}

type exportSpec struct {
	local     string
	exported  string
	localNode *ts.Node
}

func exportSpecifiers(sf *program.SourceFile, clause *ts.Node) []exportSpec {
	var specs []exportSpec
	for i := uint(0); i < clause.NamedChildCount(); i++ {
		spec := clause.NamedChild(i)
		if spec.Kind() != "export_specifier" {
			continue
		}
		name := spec.ChildByFieldName("name")
		s := exportSpec{local: specifierName(sf, name), localNode: name}
		s.exported = s.local
		if alias := spec.ChildByFieldName("alias"); alias != nil {
			s.exported = specifierName(sf, alias)
		}
		specs = append(specs, s)
	}
	return specs
}

// declaredNames returns the names an exported declaration introduces.
func declaredNames(sf *program.SourceFile, n *ts.Node) []string {
	switch n.Kind() {
	case "lexical_declaration", "variable_declaration":
		var names []string
		for i := uint(0); i < n.NamedChildCount(); i++ {
			d := n.NamedChild(i)
			if d.Kind() != "variable_declarator" {
				continue
			}
			if id := d.ChildByFieldName("name"); id != nil && id.Kind() == "identifier" {
				names = append(names, sf.NodeText(id))
			}
		}
		return names
	case "function_declaration", "generator_function_declaration", "function_signature",
		"class_declaration", "abstract_class_declaration", "interface_declaration",
		"type_alias_declaration", "enum_declaration", "internal_module", "module":
		if id := n.ChildByFieldName("name"); id != nil {
			return []string{specifierName(sf, id)}
		}
	case "ambient_declaration":
		var names []string
		for i := uint(0); i < n.NamedChildCount(); i++ {
			names = append(names, declaredNames(sf, n.NamedChild(i))...)
		}
		return names
	}
	return nil
}

// isDeclarationName reports whether id is the name being declared by its
// parent rather than a reference.
func isDeclarationName(id *ts.Node) bool {
	parent := id.Parent()
	if parent == nil {
		return false
	}
	for _, field := range []string{"name", "pattern", "parameter", "label"} {
		if n := parent.ChildByFieldName(field); n != nil && n.Id() == id.Id() {
			switch parent.Kind() {
			case "generic_type", "nested_type_identifier",
				"jsx_opening_element", "jsx_closing_element", "jsx_self_closing_element":
				return false
			}
			return true
		}
	}
	return false
}
