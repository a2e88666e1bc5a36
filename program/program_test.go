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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/ripple/diag"
	"bennypowers.dev/ripple/testutil"
)

func newTestProgram(t *testing.T, files map[string]string) Program {
	t.Helper()
	fsys := testutil.NewProjectFS(t, "/p", files)
	cache, err := NewSourceCache(0)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	host := NewHost(fsys, Options{Root: "/p"}, nil)
	prog, err := host.CreateProgram(context.Background(), cache)
	require.NoError(t, err)
	return prog
}

// findNode returns the first node of kind whose text is text.
func findNode(t *testing.T, sf *SourceFile, kind, text string) *ts.Node {
	t.Helper()
	var found *ts.Node
	var walk func(n *ts.Node)
	walk = func(n *ts.Node) {
		if found != nil {
			return
		}
		if n.Kind() == kind && sf.NodeText(n) == text {
			found = n
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c != nil {
				walk(c)
			}
		}
	}
	walk(sf.Root())
	require.NotNil(t, found, "no %s node %q in %s", kind, text, sf.Path)
	return found
}

func sourceFile(t *testing.T, prog Program, path string) *SourceFile {
	t.Helper()
	sf, ok := prog.SourceFile(path)
	require.True(t, ok, "%s not in program", path)
	return sf
}

func TestCreateProgramFollowsImports(t *testing.T) {
	prog := newTestProgram(t, map[string]string{
		"src/main.ts":                      `import { x } from "./lib.js"; import { y } from "pkg";`,
		"src/lib.ts":                       `export const x = 1;`,
		"node_modules/pkg/package.json":    `{"name": "pkg", "types": "./index.d.ts"}`,
		"node_modules/pkg/index.d.ts":      `export declare const y: number;`,
		"node_modules/unused/index.d.ts":   `export declare const z: number;`,
		"node_modules/unused/package.json": `{"name": "unused"}`,
		"src/styles.css":                   `a {}`,
	})

	var got []string
	for _, sf := range prog.SourceFiles() {
		got = append(got, sf.Path)
	}
	assert.Equal(t, []string{
		"/p/node_modules/pkg/index.d.ts",
		"/p/src/lib.ts",
		"/p/src/main.ts",
	}, got)
	assert.True(t, sourceFile(t, prog, "/p/node_modules/pkg/index.d.ts").Declaration)
}

func TestParseImports(t *testing.T) {
	sf, err := Parse("/p/a.ts", []byte(`
import { a } from "./a";
import "./side";
export * from "./star";
export { b as c } from "./b";
const lazy = () => import("./lazy");
`))
	require.NoError(t, err)
	defer sf.Tree.Close()

	var specs []string
	for _, imp := range sf.Imports {
		specs = append(specs, imp.Specifier)
	}
	assert.ElementsMatch(t, []string{"./a", "./side", "./star", "./b", "./lazy"}, specs)
	for _, imp := range sf.Imports {
		switch imp.Specifier {
		case "./lazy":
			assert.True(t, imp.IsDynamic)
		case "./star", "./b":
			assert.True(t, imp.IsExport)
		default:
			assert.False(t, imp.IsDynamic || imp.IsExport, imp.Specifier)
		}
	}
}

func TestSymbolAtResolvesThroughImportsAndReexports(t *testing.T) {
	prog := newTestProgram(t, map[string]string{
		"src/a.ts":     `export class Widget {}`,
		"src/index.ts": `export { Widget as Gadget } from "./a";`,
		"src/main.ts":  "import { Gadget } from \"./index\";\nconst local = 1;\nnew Gadget();\nlocal;",
	})
	main := sourceFile(t, prog, "/p/src/main.ts")

	sym := prog.SymbolAt(main, findNode(t, main, "identifier", "Gadget"))
	require.NotNil(t, sym)
	assert.Equal(t, "/p/src/a.ts", sym.File)
	assert.Equal(t, SymbolClass, sym.Kind)
	assert.True(t, sym.Imported)

	local := prog.SymbolAt(main, findNode(t, main, "identifier", "local"))
	require.NotNil(t, local)
	assert.Equal(t, "/p/src/main.ts", local.File)
	assert.False(t, local.Imported)
}

func TestSymbolAtGlobalScriptDeclaration(t *testing.T) {
	prog := newTestProgram(t, map[string]string{
		"src/globals.d.ts": `declare const APP_VERSION: string; interface Window { appName: string }`,
		"src/main.ts":      "export const v = APP_VERSION;",
	})
	main := sourceFile(t, prog, "/p/src/main.ts")

	sym := prog.SymbolAt(main, findNode(t, main, "identifier", "APP_VERSION"))
	require.NotNil(t, sym)
	assert.Equal(t, "/p/src/globals.d.ts", sym.File)
	assert.False(t, sym.Imported)
}

func TestMemberChainAcrossFiles(t *testing.T) {
	prog := newTestProgram(t, map[string]string{
		"src/b.ts": `export class B { c = 1; }`,
		"src/a.ts": `import { B } from "./b"; export class A { b: B = new B(); }`,
		"src/c.ts": `import { A } from "./a"; export const v = new A().b.c;`,
	})
	c := sourceFile(t, prog, "/p/src/c.ts")

	outer := findNode(t, c, "member_expression", "new A().b.c")
	inner := outer.ChildByFieldName("object")
	require.NotNil(t, inner)

	ta := prog.TypeOf(c, inner.ChildByFieldName("object"))
	require.NotNil(t, ta)
	assert.Equal(t, "A", ta.Name)

	b := prog.Property(ta, "b")
	require.NotNil(t, b)
	assert.Equal(t, "/p/src/a.ts", b.File)

	tb := prog.TypeOf(c, inner)
	require.NotNil(t, tb)
	assert.Equal(t, "/p/src/b.ts", tb.File)

	cProp := prog.Property(tb, "c")
	require.NotNil(t, cProp)
	assert.Equal(t, "/p/src/b.ts", cProp.File)
	assert.Equal(t, SymbolProperty, cProp.Kind)
}

func TestPropertyInheritanceAndParameterProperties(t *testing.T) {
	prog := newTestProgram(t, map[string]string{
		"src/shape.ts": `
export interface Named { name: string }
export interface Shape extends Named { area(): number }
export type Point = { x: number } & { y: number };
`,
		"src/base.ts": `import { Shape } from "./shape"; export abstract class Base implements Shape { name = ""; area() { return 0; } }`,
		"src/square.ts": `
import { Base } from "./base";
import type { Point } from "./shape";
export class Square extends Base {
  constructor(private readonly origin: Point, side: number) { super(); }
  corner() { return this.origin.y; }
}
`,
	})
	square := sourceFile(t, prog, "/p/src/square.ts")
	this := findNode(t, square, "this", "this")

	st := prog.TypeOf(square, this)
	require.NotNil(t, st)
	assert.Equal(t, "Square", st.Name)

	name := prog.Property(st, "name")
	require.NotNil(t, name)
	assert.Equal(t, "/p/src/base.ts", name.File)

	origin := prog.Property(st, "origin")
	require.NotNil(t, origin)
	assert.Equal(t, "/p/src/square.ts", origin.File)
	assert.Nil(t, prog.Property(st, "side"), "plain constructor parameters are not properties")

	y := prog.Property(prog.TypeOf(square, findNode(t, square, "member_expression", "this.origin")), "y")
	require.NotNil(t, y)
	assert.Equal(t, "/p/src/shape.ts", y.File)

	baseSym := prog.SymbolAt(square, findNode(t, square, "identifier", "Base"))
	require.NotNil(t, baseSym)
	area := prog.Property(&Type{Name: baseSym.Name, File: baseSym.File, sym: baseSym}, "area")
	require.NotNil(t, area)
	assert.Equal(t, "/p/src/base.ts", area.File)
	assert.Equal(t, SymbolMethod, area.Kind)
}

func TestNamespaceImportMembers(t *testing.T) {
	prog := newTestProgram(t, map[string]string{
		"src/util.ts": `export * from "./math"; export default function main() {}`,
		"src/math.ts": `export function add(a: number, b: number) { return a + b; }`,
		"src/main.ts": `import * as util from "./util"; util.add(1, 2); util["add"];`,
	})
	main := sourceFile(t, prog, "/p/src/main.ts")

	ut := prog.TypeOf(main, findNode(t, main, "identifier", "util"))
	require.NotNil(t, ut)
	add := prog.Property(ut, "add")
	require.NotNil(t, add)
	assert.Equal(t, "/p/src/math.ts", add.File)
	assert.Equal(t, SymbolFunction, add.Kind)

	assert.Nil(t, prog.Property(ut, "nope"))
}

func TestComponentResources(t *testing.T) {
	fsys := testutil.NewFixtureFS(t, "program/components", "/p")
	cache, err := NewSourceCache(0)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	prog, err := NewHost(fsys, Options{Root: "/p"}, nil).CreateProgram(context.Background(), cache)
	require.NoError(t, err)

	app := sourceFile(t, prog, "/p/src/app.component.ts")
	assert.Equal(t, []string{
		"/p/src/app.component.html",
		"/p/src/app.component.css",
	}, prog.ResourceDependencies(app.Path))
	assert.Equal(t, []string{"/p/src/assets/logo.svg"}, prog.ResourceDependencies("/p/src/app.component.html"))
	assert.Equal(t, []StyleResource{
		{File: "/p/src/app.component.css"},
		{Data: ":host { display: block; }"},
	}, prog.Stylesheets(app))
}

func TestSyntaxDiagnostics(t *testing.T) {
	prog := newTestProgram(t, map[string]string{
		"src/ok.ts":     `export const ok = 1;`,
		"src/broken.ts": "export const = ;\nexport class {",
	})
	assert.Empty(t, prog.Diagnostics(sourceFile(t, prog, "/p/src/ok.ts")))

	ds := prog.Diagnostics(sourceFile(t, prog, "/p/src/broken.ts"))
	require.NotEmpty(t, ds)
	for _, d := range ds {
		assert.Equal(t, diag.KindSyntax, d.Kind)
		assert.Equal(t, "/p/src/broken.ts", d.File)
		assert.Positive(t, d.Line)
	}
}

func TestExcludedRootsStayOut(t *testing.T) {
	fsys := testutil.NewProjectFS(t, "/p", map[string]string{
		"src/a.ts":      `export const a = 1;`,
		"src/a.spec.ts": `import { a } from "./a";`,
	})
	host := NewHost(fsys, Options{Root: "/p", Exclude: []string{"**/*.spec.ts"}}, nil)
	roots, err := host.Roots()
	require.NoError(t, err)
	assert.Equal(t, []string{"/p/src/a.ts"}, roots)
}
