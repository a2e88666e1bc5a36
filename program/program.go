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

// Package program is the host side of the build: it turns a project on
// disk into parsed, bound source files and answers the module, symbol and
// type questions the dependency analyzer asks.
//
// The Program interface is what the rest of ripple consumes. Host is the
// tree-sitter implementation; its checker understands enough TypeScript
// to follow member chains through classes, interfaces and object types
// declared in other files, which is what structural dependency tracking
// needs. It is not a type checker.
package program

import (
	"context"
	"errors"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/ripple/diag"
)

// ErrUnresolved is returned when a module specifier does not resolve to a file.
var ErrUnresolved = errors.New("cannot resolve module")

// SourceFile is a parsed TypeScript file.
type SourceFile struct {
	Path        string
	Text        []byte
	Tree        *ts.Tree
	Declaration bool
	// Imports are the module specifiers the file references, found by the
	// imports query at parse time.
	Imports []ModuleImport
}

// Root returns the root node of the file's syntax tree.
func (sf *SourceFile) Root() *ts.Node {
	return sf.Tree.RootNode()
}

// NodeText returns the source text of n.
func (sf *SourceFile) NodeText(n *ts.Node) string {
	return n.Utf8Text(sf.Text)
}

// SymbolKind classifies a declaration.
type SymbolKind int

const (
	SymbolValue SymbolKind = iota
	SymbolFunction
	SymbolClass
	SymbolInterface
	SymbolTypeAlias
	SymbolEnum
	SymbolNamespace
	// SymbolModule is the namespace object of a whole module, as bound by
	// `import * as ns`.
	SymbolModule
	SymbolProperty
	SymbolMethod
)

// Symbol is a resolved declaration.
type Symbol struct {
	Name string
	Kind SymbolKind
	// File is the path of the file that declares the symbol.
	File string
	// Imported is set when the symbol was reached through an import
	// binding of the file the question was asked about.
	Imported bool

	decl *ts.Node
	// src is the binding of File; nil for module symbols of files outside
	// the program.
	src *binding
}

// Type is the declared shape of an expression: the class, interface,
// object type alias, enum or module whose members it exposes.
type Type struct {
	Name string
	File string
	sym  *Symbol
}

// ResourceKind classifies a non-code dependency.
type ResourceKind int

const (
	ResourceTemplate ResourceKind = iota
	ResourceStyle
	ResourceAsset
)

// StyleResource is a stylesheet a component declares: either a file
// (File set) or inline text (Data set).
type StyleResource struct {
	File string
	Data string
}

// Program is a snapshot of the project for one build generation.
type Program interface {
	// SourceFiles returns every parsed file, sorted by path.
	SourceFiles() []*SourceFile
	// SourceFile returns the parsed file at path.
	SourceFile(path string) (*SourceFile, bool)
	// ResolveModule resolves specifier as imported from containingFile.
	// It returns an error wrapping ErrUnresolved when nothing matches.
	ResolveModule(specifier, containingFile string) (string, error)
	// FileExists reports whether path is a file.
	FileExists(path string) bool
	// SymbolAt resolves the identifier node in sf to its declaration.
	SymbolAt(sf *SourceFile, node *ts.Node) *Symbol
	// TypeOf returns the type of the expression node in sf, or nil when it
	// has no type with members (primitives, unknown expressions).
	TypeOf(sf *SourceFile, node *ts.Node) *Type
	// Property looks up a member of t, including inherited members.
	Property(t *Type, name string) *Symbol
	// ResourceDependencies returns the non-code files path depends on:
	// component templates and stylesheets for a source file, referenced
	// assets for a template.
	ResourceDependencies(path string) []string
	// Stylesheets returns the stylesheets components in sf declare.
	Stylesheets(sf *SourceFile) []StyleResource
	// Diagnostics returns the syntax diagnostics of sf.
	Diagnostics(sf *SourceFile) []diag.Diagnostic
}

// Builder creates programs. The compiler calls CreateProgram once per
// generation; cache carries parsed files across generations.
type Builder interface {
	CreateProgram(ctx context.Context, cache *SourceCache) (Program, error)
}

// PackageTracker is implemented by builders whose module resolution reads
// package.json files. The compiler reports changed files to it and
// watches the files it read.
type PackageTracker interface {
	// InvalidatePackages drops the cached package.json files among changed.
	InvalidatePackages(changed []string)
	// PackageFiles returns the package.json files resolution has read.
	PackageFiles() []string
}
