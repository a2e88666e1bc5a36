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
	ts "github.com/tree-sitter/go-tree-sitter"
)

// maxDepth bounds alias, re-export and heritage chains, which may be cyclic
// in broken code.
const maxDepth = 32

// resolveName looks name up in the scope of b: its own declarations, then
// its imports, then globals. viaImport is set when an import binding of b
// matched.
func (p *hostProgram) resolveName(b *binding, name string, depth int) (sym *Symbol, viaImport bool) {
	if depth > maxDepth {
		return nil, false
	}
	if n, ok := b.decls[name]; ok {
		return symbolFor(b, name, n), false
	}
	if imp, ok := b.imports[name]; ok {
		if imp.target == "" {
			return nil, true
		}
		if imp.name == "*" {
			return p.moduleSymbol(imp.target), true
		}
		return p.resolveExport(imp.target, imp.name, depth+1), true
	}
	if g, ok := p.globals[name]; ok {
		return symbolFor(g.b, name, g.node), false
	}
	return nil, false
}

func (p *hostProgram) moduleSymbol(file string) *Symbol {
	return &Symbol{Name: "*", Kind: SymbolModule, File: file, src: p.bindings[file]}
}

// resolveExport finds the declaration behind export name of file,
// following re-exports. `export *` never forwards default.
func (p *hostProgram) resolveExport(file, name string, depth int) *Symbol {
	if depth > maxDepth {
		return nil
	}
	b := p.bindings[file]
	if b == nil {
		return nil
	}
	if e, ok := b.exports[name]; ok {
		if !e.reexport {
			sym, _ := p.resolveName(b, e.local, depth+1)
			return sym
		}
		switch {
		case e.target == "":
			return nil
		case e.name == "*":
			return p.moduleSymbol(e.target)
		default:
			return p.resolveExport(e.target, e.name, depth+1)
		}
	}
	if name == "default" {
		return nil
	}
	for _, star := range b.stars {
		if sym := p.resolveExport(star, name, depth+1); sym != nil {
			return sym
		}
	}
	return nil
}

func symbolFor(b *binding, name string, n *ts.Node) *Symbol {
	return &Symbol{Name: name, Kind: kindOf(n), File: b.sf.Path, decl: n, src: b}
}

func kindOf(n *ts.Node) SymbolKind {
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration", "function_signature",
		"function_expression", "arrow_function":
		return SymbolFunction
	case "class_declaration", "abstract_class_declaration", "class":
		return SymbolClass
	case "interface_declaration":
		return SymbolInterface
	case "type_alias_declaration", "object_type", "intersection_type":
		return SymbolTypeAlias
	case "enum_declaration":
		return SymbolEnum
	case "internal_module", "module":
		return SymbolNamespace
	case "public_field_definition", "property_signature", "enum_assignment", "property_identifier":
		return SymbolProperty
	case "method_definition", "method_signature", "abstract_method_signature":
		return SymbolMethod
	case "variable_declarator":
		if v := n.ChildByFieldName("value"); v != nil {
			switch v.Kind() {
			case "arrow_function", "function_expression", "function":
				return SymbolFunction
			}
		}
	}
	return SymbolValue
}

// symbolAt resolves an identifier or type identifier node of b's file,
// checking enclosing function and block scopes before the module scope.
func (p *hostProgram) symbolAt(b *binding, n *ts.Node) (*Symbol, bool) {
	name := b.sf.NodeText(n)
	if local := localDecl(b.sf, n, name); local != nil {
		sym := symbolFor(b, name, local)
		switch local.Kind() {
		case "required_parameter", "optional_parameter", "identifier":
			sym.Kind = SymbolValue
		}
		return sym, false
	}
	return p.resolveName(b, name, 0)
}

// localDecl finds the declaration of name in the scopes enclosing n, below
// the module scope.
func localDecl(sf *SourceFile, n *ts.Node, name string) *ts.Node {
	for scope := n.Parent(); scope != nil; scope = scope.Parent() {
		switch scope.Kind() {
		case "program":
			return nil
		case "statement_block", "class_static_block":
			local := make(map[string]*ts.Node)
			for _, stmt := range namedChildren(scope) {
				declare(sf, stmt, local)
			}
			if d, ok := local[name]; ok {
				return d
			}
		case "function_declaration", "function_expression", "function", "arrow_function",
			"method_definition", "generator_function_declaration", "generator_function":
			if param := scope.ChildByFieldName("parameter"); param != nil && sf.NodeText(param) == name {
				return param
			}
			for _, param := range namedChildren(scope.ChildByFieldName("parameters")) {
				if pattern := param.ChildByFieldName("pattern"); pattern != nil &&
					pattern.Kind() == "identifier" && sf.NodeText(pattern) == name {
					return param
				}
			}
		case "for_in_statement", "for_statement":
			local := make(map[string]*ts.Node)
			if init := scope.ChildByFieldName("initializer"); init != nil {
				declare(sf, init, local)
			}
			if d, ok := local[name]; ok {
				return d
			}
			if left := scope.ChildByFieldName("left"); left != nil && left.Kind() == "identifier" &&
				sf.NodeText(left) == name {
				return left
			}
		}
	}
	return nil
}

// typeOf returns the type of expression n in b's file.
func (p *hostProgram) typeOf(b *binding, n *ts.Node, depth int) *Type {
	if n == nil || depth > maxDepth {
		return nil
	}
	switch n.Kind() {
	case "parenthesized_expression", "non_null_expression", "satisfies_expression", "await_expression":
		return p.typeOf(b, n.NamedChild(0), depth+1)
	case "as_expression":
		if n.NamedChildCount() > 1 {
			return p.typeFromNode(b, n.NamedChild(1), depth+1)
		}
		return p.typeOf(b, n.NamedChild(0), depth+1)
	case "identifier", "type_identifier":
		sym, _ := p.symbolAt(b, n)
		return p.typeOfSymbol(sym, depth+1)
	case "this":
		if class := enclosingClass(n); class != nil {
			name := ""
			if id := class.ChildByFieldName("name"); id != nil {
				name = b.sf.NodeText(id)
			}
			return p.typeOfTypeSymbol(symbolFor(b, name, class), depth+1)
		}
	case "new_expression":
		if sym := p.symbolOfExpr(b, n.ChildByFieldName("constructor"), depth+1); sym != nil && sym.Kind == SymbolClass {
			return &Type{Name: sym.Name, File: sym.File, sym: sym}
		}
	case "member_expression", "subscript_expression":
		return p.typeOfSymbol(p.symbolOfExpr(b, n, depth+1), depth+1)
	case "call_expression":
		return p.returnType(p.symbolOfExpr(b, n.ChildByFieldName("function"), depth+1), depth+1)
	}
	return nil
}

// symbolOfExpr resolves an expression that names a declaration: an
// identifier or a member chain ending in one.
func (p *hostProgram) symbolOfExpr(b *binding, n *ts.Node, depth int) *Symbol {
	if n == nil || depth > maxDepth {
		return nil
	}
	switch n.Kind() {
	case "identifier", "type_identifier":
		sym, _ := p.symbolAt(b, n)
		return sym
	case "parenthesized_expression", "non_null_expression":
		return p.symbolOfExpr(b, n.NamedChild(0), depth+1)
	case "member_expression", "subscript_expression":
		name, ok := accessedName(b.sf, n)
		if !ok {
			return nil
		}
		return p.property(p.typeOf(b, n.ChildByFieldName("object"), depth+1), name, depth+1)
	}
	return nil
}

// accessedName returns the member a.b or a["b"] names.
func accessedName(sf *SourceFile, n *ts.Node) (string, bool) {
	switch n.Kind() {
	case "member_expression":
		prop := n.ChildByFieldName("property")
		if prop == nil {
			return "", false
		}
		return sf.NodeText(prop), true
	case "subscript_expression":
		return stringValue(sf, n.ChildByFieldName("index"))
	}
	return "", false
}

func enclosingClass(n *ts.Node) *ts.Node {
	for a := n.Parent(); a != nil; a = a.Parent() {
		switch a.Kind() {
		case "class_declaration", "abstract_class_declaration", "class":
			return a
		case "function_declaration", "function_expression", "function", "program":
			return nil
		}
	}
	return nil
}

// typeOfSymbol returns the type a reference to sym evaluates to.
func (p *hostProgram) typeOfSymbol(sym *Symbol, depth int) *Type {
	if sym == nil || depth > maxDepth {
		return nil
	}
	switch sym.Kind {
	case SymbolClass, SymbolInterface, SymbolEnum, SymbolModule, SymbolNamespace, SymbolTypeAlias:
		return p.typeOfTypeSymbol(sym, depth)
	case SymbolValue, SymbolProperty:
		if sym.decl == nil || sym.src == nil {
			return nil
		}
		if ann := sym.decl.ChildByFieldName("type"); ann != nil {
			return p.typeFromNode(sym.src, ann, depth+1)
		}
		if v := sym.decl.ChildByFieldName("value"); v != nil {
			return p.typeOf(sym.src, v, depth+1)
		}
	}
	return nil
}

func (p *hostProgram) typeOfTypeSymbol(sym *Symbol, depth int) *Type {
	if sym == nil || depth > maxDepth {
		return nil
	}
	switch sym.Kind {
	case SymbolClass, SymbolInterface, SymbolEnum, SymbolModule, SymbolNamespace, SymbolTypeAlias:
		return &Type{Name: sym.Name, File: sym.File, sym: sym}
	}
	return nil
}

// returnType returns the declared return type of a function or method.
func (p *hostProgram) returnType(sym *Symbol, depth int) *Type {
	if sym == nil || sym.decl == nil || sym.src == nil || depth > maxDepth {
		return nil
	}
	fn := sym.decl
	if fn.Kind() == "variable_declarator" || fn.Kind() == "public_field_definition" {
		fn = fn.ChildByFieldName("value")
		if fn == nil {
			return nil
		}
	}
	if ret := fn.ChildByFieldName("return_type"); ret != nil {
		return p.typeFromNode(sym.src, ret, depth+1)
	}
	return nil
}

// typeFromNode resolves a type annotation written in b's file.
func (p *hostProgram) typeFromNode(b *binding, n *ts.Node, depth int) *Type {
	if n == nil || depth > maxDepth {
		return nil
	}
	switch n.Kind() {
	case "type_annotation", "parenthesized_type", "readonly_type":
		return p.typeFromNode(b, n.NamedChild(0), depth+1)
	case "type_identifier", "identifier":
		sym, _ := p.resolveName(b, b.sf.NodeText(n), depth+1)
		return p.typeOfTypeSymbol(sym, depth+1)
	case "generic_type":
		return p.typeFromNode(b, n.ChildByFieldName("name"), depth+1)
	case "nested_type_identifier", "nested_identifier", "member_expression":
		return p.typeOfTypeSymbol(p.qualifiedSymbol(b, n, depth+1), depth+1)
	case "type_query":
		return p.typeOf(b, n.NamedChild(0), depth+1)
	case "object_type", "intersection_type":
		return &Type{File: b.sf.Path, sym: symbolFor(b, "", n)}
	}
	return nil
}

// qualifiedSymbol resolves ns.Name and ns.inner.Name type references.
func (p *hostProgram) qualifiedSymbol(b *binding, n *ts.Node, depth int) *Symbol {
	if n == nil || depth > maxDepth {
		return nil
	}
	switch n.Kind() {
	case "identifier", "type_identifier":
		sym, _ := p.resolveName(b, b.sf.NodeText(n), depth+1)
		return sym
	case "nested_type_identifier":
		module := p.qualifiedSymbol(b, n.ChildByFieldName("module"), depth+1)
		name := n.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		return p.property(p.typeOfTypeSymbol(module, depth+1), b.sf.NodeText(name), depth+1)
	case "nested_identifier", "member_expression":
		object := n.ChildByFieldName("object")
		prop := n.ChildByFieldName("property")
		if object == nil || prop == nil {
			// Older grammars spell nested_identifier without fields.
			if n.NamedChildCount() < 2 {
				return nil
			}
			object, prop = n.NamedChild(0), n.NamedChild(n.NamedChildCount()-1)
		}
		module := p.qualifiedSymbol(b, object, depth+1)
		return p.property(p.typeOfTypeSymbol(module, depth+1), b.sf.NodeText(prop), depth+1)
	}
	return nil
}

// property looks up member name of t, searching base classes and
// extended interfaces.
func (p *hostProgram) property(t *Type, name string, depth int) *Symbol {
	if t == nil || t.sym == nil || depth > maxDepth {
		return nil
	}
	sym := t.sym
	switch sym.Kind {
	case SymbolModule:
		return p.resolveExport(sym.File, name, depth+1)
	}
	if sym.decl == nil || sym.src == nil {
		return nil
	}
	switch sym.Kind {
	case SymbolNamespace:
		return namespaceMember(sym, name)
	case SymbolClass:
		return p.classMember(sym, name, depth+1)
	case SymbolInterface:
		return p.interfaceMember(sym, name, depth+1)
	case SymbolTypeAlias:
		return p.objectMember(sym.src, sym.decl, name, depth+1)
	case SymbolEnum:
		for _, m := range namedChildren(sym.decl.ChildByFieldName("body")) {
			id := m
			if m.Kind() == "enum_assignment" {
				id = m.ChildByFieldName("name")
			}
			if memberName(sym.src.sf, id) == name {
				return memberSymbol(sym.src, name, m, SymbolProperty)
			}
		}
	}
	return nil
}

func memberSymbol(b *binding, name string, n *ts.Node, kind SymbolKind) *Symbol {
	return &Symbol{Name: name, Kind: kind, File: b.sf.Path, decl: n, src: b}
}

func namespaceMember(sym *Symbol, name string) *Symbol {
	body := sym.decl.ChildByFieldName("body")
	for _, stmt := range namedChildren(body) {
		if stmt.Kind() != "export_statement" {
			continue
		}
		decl := stmt.ChildByFieldName("declaration")
		if decl == nil {
			continue
		}
		scope := make(map[string]*ts.Node)
		declare(sym.src.sf, decl, scope)
		if n, ok := scope[name]; ok {
			return symbolFor(sym.src, name, n)
		}
	}
	return nil
}

func (p *hostProgram) classMember(sym *Symbol, name string, depth int) *Symbol {
	src := sym.src
	for _, m := range namedChildren(sym.decl.ChildByFieldName("body")) {
		switch m.Kind() {
		case "public_field_definition", "method_definition", "method_signature", "abstract_method_signature":
		default:
			continue
		}
		memberNameNode := m.ChildByFieldName("name")
		mname := memberName(src.sf, memberNameNode)
		if mname == name {
			return symbolFor(src, name, m)
		}
		if m.Kind() == "method_definition" && mname == "constructor" {
			if param := parameterProperty(src.sf, m, name); param != nil {
				return memberSymbol(src, name, param, SymbolProperty)
			}
		}
	}

	for _, heritage := range namedChildren(sym.decl) {
		if heritage.Kind() != "class_heritage" {
			continue
		}
		for _, clause := range namedChildren(heritage) {
			for _, base := range namedChildren(clause) {
				if base.Kind() == "type_arguments" {
					continue
				}
				var t *Type
				switch clause.Kind() {
				case "extends_clause":
					if baseSym := p.symbolOfExpr(src, base, depth+1); baseSym != nil {
						t = p.typeOfTypeSymbol(baseSym, depth+1)
					}
				case "implements_clause":
					t = p.typeFromNode(src, base, depth+1)
				}
				if found := p.property(t, name, depth+1); found != nil {
					return found
				}
			}
		}
	}
	return nil
}

// parameterProperty finds a constructor parameter that declares a class
// property: one carrying an accessibility, readonly or override modifier.
func parameterProperty(sf *SourceFile, ctor *ts.Node, name string) *ts.Node {
	for _, param := range namedChildren(ctor.ChildByFieldName("parameters")) {
		switch param.Kind() {
		case "required_parameter", "optional_parameter":
		default:
			continue
		}
		pattern := param.ChildByFieldName("pattern")
		if pattern == nil || sf.NodeText(pattern) != name {
			continue
		}
		if firstNamedChildOfKind(param, "accessibility_modifier") != nil ||
			firstNamedChildOfKind(param, "override_modifier") != nil ||
			hasChildOfKind(param, "readonly") {
			return param
		}
	}
	return nil
}

func (p *hostProgram) interfaceMember(sym *Symbol, name string, depth int) *Symbol {
	src := sym.src
	if found := typeMember(src, sym.decl.ChildByFieldName("body"), name); found != nil {
		return found
	}
	for _, clause := range namedChildren(sym.decl) {
		if clause.Kind() != "extends_type_clause" {
			continue
		}
		for _, base := range namedChildren(clause) {
			if found := p.property(p.typeFromNode(src, base, depth+1), name, depth+1); found != nil {
				return found
			}
		}
	}
	return nil
}

// typeMember finds a property or method signature in an object type or
// interface body.
func typeMember(b *binding, body *ts.Node, name string) *Symbol {
	for _, m := range namedChildren(body) {
		switch m.Kind() {
		case "property_signature", "method_signature":
			if memberName(b.sf, m.ChildByFieldName("name")) == name {
				return symbolFor(b, name, m)
			}
		}
	}
	return nil
}

func (p *hostProgram) objectMember(b *binding, n *ts.Node, name string, depth int) *Symbol {
	if n == nil || depth > maxDepth {
		return nil
	}
	switch n.Kind() {
	case "type_alias_declaration":
		return p.objectMember(b, n.ChildByFieldName("value"), name, depth+1)
	case "object_type":
		return typeMember(b, n, name)
	case "parenthesized_type":
		return p.objectMember(b, n.NamedChild(0), name, depth+1)
	case "intersection_type":
		for _, part := range namedChildren(n) {
			if found := p.objectMember(b, part, name, depth+1); found != nil {
				return found
			}
		}
		return nil
	}
	return p.property(p.typeFromNode(b, n, depth+1), name, depth+1)
}
