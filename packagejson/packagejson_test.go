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
package packagejson_test

import (
	"errors"
	"slices"
	"testing"

	"bennypowers.dev/ripple/packagejson"
)

func mustParse(t *testing.T, data string) *packagejson.PackageJSON {
	t.Helper()
	pkg, err := packagejson.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return pkg
}

func TestResolveExport(t *testing.T) {
	tests := []struct {
		name    string
		pkg     string
		subpath string
		want    string
		wantErr bool
	}{
		{
			name:    "string export",
			pkg:     `{"name": "a", "exports": "./index.js"}`,
			subpath: ".",
			want:    "index.js",
		},
		{
			name:    "string export rejects subpaths",
			pkg:     `{"name": "a", "exports": "./index.js"}`,
			subpath: "./other.js",
			wantErr: true,
		},
		{
			name:    "types condition wins",
			pkg:     `{"name": "a", "exports": {".": {"import": "./index.js", "types": "./index.d.ts"}}}`,
			subpath: ".",
			want:    "index.d.ts",
		},
		{
			name:    "condition-only export",
			pkg:     `{"name": "a", "exports": {"types": "./types/index.d.ts", "default": "./index.js"}}`,
			subpath: ".",
			want:    "types/index.d.ts",
		},
		{
			name:    "nested conditions",
			pkg:     `{"name": "a", "exports": {".": {"import": {"types": "./esm/index.d.ts", "default": "./esm/index.js"}}}}`,
			subpath: ".",
			want:    "esm/index.d.ts",
		},
		{
			name:    "subpath pattern",
			pkg:     `{"name": "a", "exports": {"./*": {"types": "./dist/*.d.ts"}}}`,
			subpath: "./button",
			want:    "dist/button.d.ts",
		},
		{
			name:    "most specific pattern",
			pkg:     `{"name": "a", "exports": {"./*": "./dist/*.js", "./icons/*": "./icons/*.js"}}`,
			subpath: "./icons/close",
			want:    "icons/close.js",
		},
		{
			name:    "fallback array",
			pkg:     `{"name": "a", "exports": {".": [{"worker": "./w.js"}, "./index.js"]}}`,
			subpath: ".",
			want:    "index.js",
		},
		{
			name:    "main fallback",
			pkg:     `{"name": "a", "main": "./lib/main.js"}`,
			subpath: ".",
			want:    "lib/main.js",
		},
		{
			name:    "unexported subpath",
			pkg:     `{"name": "a", "exports": {".": "./index.js"}}`,
			subpath: "./internal.js",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mustParse(t, tt.pkg).ResolveExport(tt.subpath, nil)
			if tt.wantErr {
				if !errors.Is(err, packagejson.ErrNotExported) {
					t.Fatalf("Expected ErrNotExported, got %q, %v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveExport failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveExport(%q) = %q, want %q", tt.subpath, got, tt.want)
			}
		})
	}
}

func TestResolveExportCustomConditions(t *testing.T) {
	pkg := mustParse(t, `{"name": "a", "exports": {".": {"types": "./index.d.ts", "import": "./index.js"}}}`)
	got, err := pkg.ResolveExport(".", &packagejson.ResolveOptions{Conditions: []string{"import"}})
	if err != nil {
		t.Fatal(err)
	}
	if got != "index.js" {
		t.Errorf("Expected index.js, got %q", got)
	}
}

func TestEntrypoints(t *testing.T) {
	pkg := mustParse(t, `{"name": "a", "types": "./dist/index.d.ts", "main": "./dist/index.js"}`)

	got, err := pkg.Entrypoints(".", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"dist/index.d.ts", "dist/index.js", "index"}
	if !slices.Equal(got, want) {
		t.Errorf("Entrypoints(.) = %v, want %v", got, want)
	}

	got, err = pkg.Entrypoints("./dist/util", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []string{"dist/util"}) {
		t.Errorf("Entrypoints(./dist/util) = %v", got)
	}
}

func TestWorkspacePatterns(t *testing.T) {
	tests := []struct {
		name string
		pkg  string
		want []string
	}{
		{"array", `{"name": "root", "workspaces": ["packages/*"]}`, []string{"packages/*"}},
		{"object", `{"name": "root", "workspaces": {"packages": ["libs/*"]}}`, []string{"libs/*"}},
		{"none", `{"name": "root"}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustParse(t, tt.pkg).WorkspacePatterns(); !slices.Equal(got, tt.want) {
				t.Errorf("WorkspacePatterns() = %v, want %v", got, tt.want)
			}
		})
	}
}
