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
package style

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"bennypowers.dev/ripple/paths"
)

// BundleError is a stylesheet that failed to bundle. Line and Column are
// 1-based; zero when esbuild reported no location.
type BundleError struct {
	File    string
	Line    int
	Column  int
	Message string
}

func (e *BundleError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// assetLoaders copy fonts and images next to the bundle instead of
// inlining them.
var assetLoaders = map[string]api.Loader{
	".png":   api.LoaderFile,
	".jpg":   api.LoaderFile,
	".jpeg":  api.LoaderFile,
	".gif":   api.LoaderFile,
	".svg":   api.LoaderFile,
	".webp":  api.LoaderFile,
	".avif":  api.LoaderFile,
	".ico":   api.LoaderFile,
	".woff":  api.LoaderFile,
	".woff2": api.LoaderFile,
	".ttf":   api.LoaderFile,
	".otf":   api.LoaderFile,
	".eot":   api.LoaderFile,
}

// EsbuildBundler bundles stylesheets from the OS filesystem with esbuild.
type EsbuildBundler struct {
	// OutDir is where esbuild places copied assets. Nothing is written; it
	// only determines the relative URLs in the bundle.
	OutDir string
	Minify bool
}

// BundleFile bundles the stylesheet at path with its @imports.
func (b *EsbuildBundler) BundleFile(ctx context.Context, path string) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(filepath.FromSlash(path))
	opts := b.options(dir)
	opts.EntryPoints = []string{filepath.FromSlash(path)}
	return b.build(path, dir, opts)
}

// BundleInline bundles inline stylesheet text as if it were a file next to
// containingFile.
func (b *EsbuildBundler) BundleInline(ctx context.Context, data, containingFile string) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := filepath.Dir(filepath.FromSlash(containingFile))
	opts := b.options(dir)
	opts.Stdin = &api.StdinOptions{
		Contents:   data,
		ResolveDir: dir,
		Sourcefile: filepath.Base(containingFile),
		Loader:     api.LoaderCSS,
	}
	out, err := b.build(containingFile, dir, opts)
	if err != nil {
		return nil, err
	}
	// The stdin input is named after the containing file.
	self := paths.Norm(containingFile)
	out.ReferencedFiles = slices.DeleteFunc(out.ReferencedFiles, func(p string) bool { return p == self })
	return out, nil
}

func (b *EsbuildBundler) options(dir string) api.BuildOptions {
	outDir := b.OutDir
	if outDir == "" {
		outDir = dir
	}
	return api.BuildOptions{
		Bundle:            true,
		Write:             false,
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		AbsWorkingDir:     dir,
		Outdir:            filepath.FromSlash(outDir),
		Loader:            assetLoaders,
		MinifyWhitespace:  b.Minify,
		MinifySyntax:      b.Minify,
		MinifyIdentifiers: b.Minify,
	}
}

func (b *EsbuildBundler) build(file, dir string, opts api.BuildOptions) (*Output, error) {
	result := api.Build(opts)
	if len(result.Errors) > 0 {
		msg := result.Errors[0]
		bundleErr := &BundleError{File: file, Message: msg.Text}
		if loc := msg.Location; loc != nil {
			if loc.File != "" && loc.File != "<stdin>" {
				bundleErr.File = paths.Norm(filepath.Join(dir, loc.File))
			}
			bundleErr.Line = loc.Line
			bundleErr.Column = loc.Column + 1
		}
		return nil, bundleErr
	}

	out := &Output{}
	for _, f := range result.OutputFiles {
		if strings.HasSuffix(f.Path, ".css") {
			out.Contents = string(f.Contents)
			break
		}
	}

	refs, err := metafileInputs(result.Metafile, dir)
	if err != nil {
		return nil, fmt.Errorf("reading metafile for %s: %w", file, err)
	}
	out.ReferencedFiles = refs
	return out, nil
}

type metafile struct {
	Inputs map[string]json.RawMessage `json:"inputs"`
}

// metafileInputs returns the files esbuild read, as absolute paths.
// Inputs are keyed relative to the working directory; virtual inputs like
// <stdin> are skipped.
func metafileInputs(raw, dir string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var meta metafile
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(meta.Inputs))
	for input := range meta.Inputs {
		if strings.HasPrefix(input, "<") || (strings.Contains(input, ":") && !filepath.IsAbs(input)) {
			continue
		}
		p := filepath.FromSlash(input)
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		refs = append(refs, paths.Norm(p))
	}
	slices.Sort(refs)
	return refs, nil
}
