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
package emit

import (
	"context"
	"fmt"
	"path"

	"github.com/evanw/esbuild/pkg/api"

	"bennypowers.dev/ripple/fs"
	"bennypowers.dev/ripple/paths"
)

// tsconfigRaw selects legacy TypeScript decorators, the kind component
// decorators are written for.
const tsconfigRaw = `{"compilerOptions":{"experimentalDecorators":true,"useDefineForClassFields":false}}`

// EsbuildEmitter strips types from TypeScript files with esbuild's
// transform API. It does not bundle and does not check types.
type EsbuildEmitter struct {
	fs        fs.FileSystem
	srcDir    string
	outDir    string
	sourcemap bool
	target    api.Target
}

// NewEsbuildEmitter creates an emitter reading through fsys and placing
// outputs for files below srcDir at the same relative path below outDir.
func NewEsbuildEmitter(fsys fs.FileSystem, srcDir, outDir string) *EsbuildEmitter {
	return &EsbuildEmitter{
		fs:     fsys,
		srcDir: paths.Norm(srcDir),
		outDir: paths.Norm(outDir),
		target: api.ES2022,
	}
}

// WithSourcemap returns a copy that also emits external source maps.
func (e *EsbuildEmitter) WithSourcemap(enabled bool) *EsbuildEmitter {
	clone := *e
	clone.sourcemap = enabled
	return &clone
}

// OutputPath returns the .js path file emits to.
func (e *EsbuildEmitter) OutputPath(file string) string {
	return OutputPath(e.srcDir, e.outDir, file, "")
}

// Emit transforms file. Declaration files emit nothing.
func (e *EsbuildEmitter) Emit(ctx context.Context, file string) ([]Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if paths.IsDeclaration(file) {
		return nil, nil
	}
	content, err := e.fs.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	loader := api.LoaderTS
	if path.Ext(file) == ".tsx" {
		loader = api.LoaderTSX
	}
	outPath := e.OutputPath(file)
	opts := api.TransformOptions{
		Loader:     loader,
		Format:     api.FormatESModule,
		Target:     e.target,
		Sourcefile: file,
		LogLevel:   api.LogLevelSilent,
	}
	opts.TsconfigRaw = tsconfigRaw
	if e.sourcemap {
		opts.Sourcemap = api.SourceMapExternal
	}

	result := api.Transform(string(content), opts)
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		emitErr := &Error{File: file, Message: msg.Text}
		if loc := msg.Location; loc != nil {
			emitErr.Line = loc.Line
			emitErr.Column = loc.Column + 1
		}
		return nil, emitErr
	}

	code := result.Code
	outputs := []Output{{Source: file, Path: outPath}}
	if e.sourcemap && len(result.Map) > 0 {
		mapPath := outPath + ".map"
		code = append(code, []byte("//# sourceMappingURL="+path.Base(mapPath)+"\n")...)
		outputs = append(outputs, Output{Source: file, Path: mapPath, Contents: result.Map})
	}
	outputs[0].Contents = code
	return outputs, nil
}
