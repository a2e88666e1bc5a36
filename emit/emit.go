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

// Package emit turns TypeScript sources into JavaScript outputs and writes
// them only when their content changed.
package emit

import (
	"context"
	"fmt"
	"path"
	"strings"

	"bennypowers.dev/ripple/paths"
)

// Output is one emitted file.
type Output struct {
	// Source is the file the output was emitted from.
	Source   string `json:"source"`
	Path     string `json:"path"`
	Contents []byte `json:"-"`
}

// Emitter emits one source file.
type Emitter interface {
	Emit(ctx context.Context, file string) ([]Output, error)
	// OutputPath returns where file's primary output goes.
	OutputPath(file string) string
}

// Error is a source that failed to emit. Line and Column are 1-based; zero
// when unknown.
type Error struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// jsExtensions maps a source extension to its emitted extension.
var jsExtensions = map[string]string{
	".ts":  ".js",
	".tsx": ".js",
	".mts": ".mjs",
	".cts": ".cjs",
}

// OutputPath maps file below srcDir to the same relative path below
// outDir, swapping the extension for ext. When ext is empty, TypeScript
// extensions become their JavaScript counterparts and others are kept.
// Files outside srcDir keep their directory.
func OutputPath(srcDir, outDir, file, ext string) string {
	file = paths.Norm(file)
	cur := path.Ext(file)
	if ext == "" {
		ext = cur
		if js, ok := jsExtensions[cur]; ok {
			ext = js
		}
	}
	stem := strings.TrimSuffix(file, cur)
	if srcDir == "" || outDir == "" || !paths.IsChild(file, paths.Norm(srcDir)) {
		return stem + ext
	}
	rel := strings.TrimPrefix(stem, paths.Norm(srcDir))
	return path.Join(paths.Norm(outDir), rel) + ext
}
