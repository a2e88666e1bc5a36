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
package compiler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/ripple/diag"
	"bennypowers.dev/ripple/emit"
	"bennypowers.dev/ripple/internal/mapfs"
	"bennypowers.dev/ripple/internal/metrics"
	"bennypowers.dev/ripple/paths"
	"bennypowers.dev/ripple/program"
	"bennypowers.dev/ripple/style"
	"bennypowers.dev/ripple/testutil"
)

// fakeBundler serves stylesheet bundles from a table.
type fakeBundler struct {
	mu      sync.Mutex
	outputs map[string]*style.Output
	errs    map[string]error
	calls   map[string]int
}

func newFakeBundler() *fakeBundler {
	return &fakeBundler{
		outputs: make(map[string]*style.Output),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (f *fakeBundler) set(key string, out *style.Output) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[key] = out
}

func (f *fakeBundler) bundle(key, fallback string) (*style.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if out, ok := f.outputs[key]; ok {
		return out, nil
	}
	return &style.Output{Contents: fallback, ReferencedFiles: []string{key}}, nil
}

func (f *fakeBundler) BundleFile(_ context.Context, path string) (*style.Output, error) {
	return f.bundle(path, "/* "+path+" */")
}

func (f *fakeBundler) BundleInline(_ context.Context, data, containingFile string) (*style.Output, error) {
	return f.bundle(containingFile, data)
}

func (f *fakeBundler) callCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

type harness struct {
	fs       *mapfs.MapFileSystem
	bundler  *fakeBundler
	compiler *Compiler
}

func newHarness(t *testing.T, files map[string]string, opts Options) *harness {
	t.Helper()
	mfs := testutil.NewProjectFS(t, "/p", files)
	bundler := newFakeBundler()
	host := program.NewHost(mfs, program.Options{Root: "/p/src"}, nil)
	opts.ProjectRoot = "/p/src"
	opts.OutDir = "/p/dist"
	c, err := New(host, emit.NewEsbuildEmitter(mfs, "/p/src", "/p/dist"), emit.NewStore(mfs), bundler, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return &harness{fs: mfs, bundler: bundler, compiler: c}
}

func (h *harness) compile(t *testing.T, modified ...string) *Result {
	t.Helper()
	res, err := h.compiler.Compile(context.Background(), modified)
	require.NoError(t, err)
	require.NoError(t, h.compiler.Deps().Verify())
	return res
}

func (h *harness) write(path, content string) {
	h.fs.AddFile(path, content, 0o644)
}

func src(names ...string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "/p/src/" + n
	}
	return out
}

var abc = map[string]string{
	"src/a.ts": "export const A = 1;\n",
	"src/b.ts": "export * from \"./a\";\n",
	"src/c.ts": "import { A } from \"./b\";\nconsole.log(A);\n",
}

func TestCompile_FirstGenerationBuildsEverything(t *testing.T) {
	h := newHarness(t, abc, Options{})
	res := h.compile(t)

	assert.Equal(t, 1, res.Generation)
	assert.Equal(t, src("a.ts", "b.ts", "c.ts"), res.AffectedFiles)
	assert.Equal(t, src("a.ts", "b.ts", "c.ts"), res.EmittedFiles)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, src("a.ts", "b.ts", "c.ts"), res.WatchFiles)

	data, err := h.fs.ReadFile("/p/dist/a.js")
	require.NoError(t, err)
	assert.Contains(t, string(data), "const A = 1;")
	assert.Equal(t, PhaseIdle, h.compiler.Phase())
}

func TestCompile_StarReexportScenario(t *testing.T) {
	h := newHarness(t, abc, Options{})
	h.compile(t)

	h.write("/p/src/a.ts", "export const A = 2;\n")
	res := h.compile(t, "/p/src/a.ts")
	assert.Equal(t, src("a.ts", "b.ts", "c.ts"), res.AffectedFiles)
	assert.Equal(t, src("a.ts"), res.EmittedFiles, "unchanged outputs are not rewritten")
	assert.Equal(t, 2, h.fs.Writes("/p/dist/a.js"))
	assert.Equal(t, 1, h.fs.Writes("/p/dist/b.js"))
	assert.Equal(t, 1, h.fs.Writes("/p/dist/c.js"))

	res = h.compile(t, "/p/src/b.ts")
	assert.Equal(t, src("b.ts", "c.ts"), res.AffectedFiles)
	assert.Empty(t, res.EmittedFiles)
}

func TestCompile_EmptyChangeEmitsNothing(t *testing.T) {
	h := newHarness(t, abc, Options{})
	h.compile(t)

	res := h.compile(t)
	assert.Equal(t, 2, res.Generation)
	assert.Empty(t, res.AffectedFiles)
	assert.Empty(t, res.EmittedFiles)
}

func TestCompile_SymbolPrecision(t *testing.T) {
	h := newHarness(t, map[string]string{
		"src/b.ts": "export const Foo = 1;\n",
		"src/a.ts": "import { NotFoo } from \"./b\";\nconsole.log(NotFoo);\n",
	}, Options{})
	h.compile(t)

	h.write("/p/src/b.ts", "export const Foo = 2;\n")
	res := h.compile(t, "/p/src/b.ts")
	assert.Equal(t, src("b.ts"), res.AffectedFiles)
	assert.Equal(t, src("b.ts"), res.EmittedFiles)
}

func TestCompile_PropertyPath(t *testing.T) {
	h := newHarness(t, map[string]string{
		"src/b.ts": "export class B { c = 1; }\n",
		"src/a.ts": "import { B } from \"./b\";\nexport class A { b: B = new B(); }\n",
		"src/c.ts": "import { A } from \"./a\";\nconsole.log(new A().b.c);\n",
	}, Options{})
	h.compile(t)

	res := h.compile(t, "/p/src/b.ts")
	assert.Equal(t, src("a.ts", "b.ts", "c.ts"), res.AffectedFiles)

	// The graph is rebuilt, so the same change reaches the same files.
	res = h.compile(t, "/p/src/b.ts")
	assert.Equal(t, src("a.ts", "b.ts", "c.ts"), res.AffectedFiles)
}

func TestCompile_Diagnostics(t *testing.T) {
	h := newHarness(t, map[string]string{
		"src/ok.ts":     "export const ok = 1;\n",
		"src/broken.ts": "import \"./missing\";\nexport const = ;\n",
	}, Options{})
	res := h.compile(t)

	kinds := make(map[diag.Kind]bool)
	for _, d := range res.Diagnostics {
		assert.Equal(t, "/p/src/broken.ts", d.File)
		kinds[d.Kind] = true
	}
	assert.True(t, kinds[diag.KindResolution])
	assert.True(t, kinds[diag.KindSyntax])
	assert.True(t, kinds[diag.KindEmit])
	assert.Equal(t, src("ok.ts"), res.EmittedFiles)

	// Diagnostics are only reported for affected files.
	h.write("/p/src/ok.ts", "export const ok = 2;\n")
	res = h.compile(t, "/p/src/ok.ts")
	assert.Empty(t, res.Diagnostics)
}

func TestCompile_DeletedSourceRemovesOutput(t *testing.T) {
	h := newHarness(t, abc, Options{})
	h.compile(t)
	require.True(t, h.fs.Exists("/p/dist/a.js"))

	require.NoError(t, h.fs.Remove("/p/src/a.ts"))
	res := h.compile(t, "/p/src/a.ts")

	assert.Contains(t, res.AffectedFiles, "/p/src/a.ts")
	assert.False(t, h.fs.Exists("/p/dist/a.js"))
	require.NotEmpty(t, res.Diagnostics)
	assert.Equal(t, "/p/src/b.ts", res.Diagnostics[0].File)
	assert.Equal(t, diag.KindResolution, res.Diagnostics[0].Kind)
}

var components = map[string]string{
	"src/decorators.ts":       "export function Component(config: object): ClassDecorator {\n  return () => {};\n}\n",
	"src/card.component.ts":   "import { Component } from \"./decorators\";\n@Component({ styleUrls: [\"./card.component.css\"] })\nexport class Card {}\n",
	"src/other.component.ts":  "import { Component } from \"./decorators\";\n@Component({ styleUrl: \"./other.component.css\", styles: [\":host { display: block; }\"] })\nexport class Other {}\n",
	"src/card.component.css":  "@import \"./theme.css\";\n",
	"src/other.component.css": ".other {}\n",
	"src/theme.css":           ".theme {}\n",
}

func TestCompile_StylesheetInvalidation(t *testing.T) {
	h := newHarness(t, components, Options{})
	h.bundler.set("/p/src/card.component.css", &style.Output{
		Contents:        ".theme{}.card{}",
		ReferencedFiles: []string{"/p/src/card.component.css", "/p/src/theme.css"},
	})

	res := h.compile(t)
	assert.Contains(t, res.EmittedFiles, "/p/src/card.component.css")
	assert.Contains(t, res.EmittedFiles, "/p/src/other.component.css")
	assert.Contains(t, res.WatchFiles, "/p/src/theme.css")
	data, err := h.fs.ReadFile("/p/dist/card.component.css")
	require.NoError(t, err)
	assert.Equal(t, ".theme{}.card{}", string(data))
	file, err := h.fs.ReadFile("/p/dist/other.component.css")
	require.NoError(t, err)
	assert.Equal(t, "/* /p/src/other.component.css */", string(file))
	inline, err := h.fs.ReadFile("/p/dist/other.component.styles.css")
	require.NoError(t, err)
	assert.Equal(t, ":host { display: block; }", string(inline))

	h.bundler.set("/p/src/card.component.css", &style.Output{
		Contents:        ".theme{color:red}.card{}",
		ReferencedFiles: []string{"/p/src/card.component.css", "/p/src/theme.css"},
	})
	res = h.compile(t, "/p/src/theme.css")

	assert.Equal(t, src("card.component.css", "card.component.ts", "theme.css"), res.AffectedFiles)
	assert.Equal(t, src("card.component.css"), res.EmittedFiles)
	assert.Equal(t, 2, h.bundler.callCount("/p/src/card.component.css"))
	assert.Equal(t, 1, h.bundler.callCount("/p/src/other.component.css"))
	assert.Equal(t, 1, h.bundler.callCount("/p/src/other.component.ts"))
}

func TestCompile_BundleErrorsBecomeDiagnostics(t *testing.T) {
	h := newHarness(t, components, Options{})
	h.bundler.errs["/p/src/card.component.css"] = &style.BundleError{
		File:    "/p/src/theme.css",
		Line:    1,
		Column:  9,
		Message: "Expected \"}\"",
	}

	res := h.compile(t)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, diag.KindBundle, d.Kind)
	assert.Equal(t, "/p/src/theme.css", d.File)
	assert.Equal(t, 1, d.Line)

	// The failure stays cached until an input changes.
	h.write("/p/src/decorators.ts", "export function Component(config: object): ClassDecorator {\n  return () => {};\n}\n// touched\n")
	res = h.compile(t, "/p/src/decorators.ts")
	assert.Contains(t, res.AffectedFiles, "/p/src/card.component.ts")
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, 1, h.bundler.callCount("/p/src/card.component.css"))
}

func TestCompile_GlobalStyle(t *testing.T) {
	h := newHarness(t, map[string]string{
		"src/main.ts":    "export const main = 1;\n",
		"src/global.css": "body { margin: 0; }\n",
	}, Options{GlobalStyle: "/p/src/global.css"})

	res := h.compile(t)
	assert.Contains(t, res.EmittedFiles, "/p/src/global.css")
	assert.Contains(t, res.WatchFiles, "/p/src/global.css")
	assert.True(t, h.fs.Exists("/p/dist/global.css"))

	res = h.compile(t, "/p/src/main.ts")
	assert.NotContains(t, res.EmittedFiles, "/p/src/global.css")
	assert.Equal(t, 1, h.bundler.callCount("/p/src/global.css"))
}

func TestCompile_BundleKeepsOutOfTreeOutputsInMemory(t *testing.T) {
	h := newHarness(t, map[string]string{
		"src/main.ts":   "import { helper } from \"../lib/helper\";\nconsole.log(helper);\n",
		"lib/helper.ts": "export const helper = 1;\n",
	}, Options{Bundle: true, Scope: paths.NewScope([]string{"/p"}, nil)})

	res := h.compile(t)
	assert.Equal(t, []string{"/p/lib/helper.ts", "/p/src/main.ts"}, res.AffectedFiles)
	assert.Contains(t, res.EmittedFiles, "/p/lib/helper.ts")
	assert.False(t, h.fs.Exists("/p/lib/helper.js"))

	var got []string
	for _, out := range res.Outputs {
		got = append(got, out.Path)
	}
	assert.Equal(t, []string{"/p/dist/main.js", "/p/lib/helper.js"}, got)
}

func TestCompile_NoEmit(t *testing.T) {
	h := newHarness(t, abc, Options{NoEmit: true})
	res := h.compile(t)
	assert.Equal(t, src("a.ts", "b.ts", "c.ts"), res.AffectedFiles)
	assert.Empty(t, res.EmittedFiles)
	assert.False(t, h.fs.Exists("/p/dist/a.js"))
}

type failingBuilder struct{}

func (failingBuilder) CreateProgram(context.Context, *program.SourceCache) (program.Program, error) {
	return nil, errors.New("project unreadable")
}

func TestCompile_HostFailureAbortsCycle(t *testing.T) {
	c, err := New(failingBuilder{}, nil, nil, newFakeBundler(), Options{ProjectRoot: "/p/src", NoEmit: true})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Compile(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project unreadable")
	assert.Equal(t, PhaseIdle, c.Phase())
}

// flakyBuilder fails the next CreateProgram call when failNext is set.
type flakyBuilder struct {
	program.Builder
	failNext atomic.Bool
}

func (b *flakyBuilder) CreateProgram(ctx context.Context, cache *program.SourceCache) (program.Program, error) {
	if b.failNext.CompareAndSwap(true, false) {
		return nil, errors.New("transient read error")
	}
	return b.Builder.CreateProgram(ctx, cache)
}

func TestCompile_PackageJSONChangeReresolves(t *testing.T) {
	h := newHarness(t, map[string]string{
		"src/main.ts":                   "import { x } from \"lib\";\nexport const y = x;\n",
		"node_modules/lib/package.json": `{"name": "lib", "types": "old.d.ts"}`,
		"node_modules/lib/old.d.ts":     "export declare const x: number;\n",
		"node_modules/lib/new.d.ts":     "export declare const x: number;\n",
	}, Options{})
	res := h.compile(t)
	assert.Contains(t, res.WatchFiles, "/p/node_modules/lib/package.json")
	got, err := h.compiler.prog.ResolveModule("lib", "/p/src/main.ts")
	require.NoError(t, err)
	assert.Equal(t, "/p/node_modules/lib/old.d.ts", got)

	h.fs.AddFile("/p/node_modules/lib/package.json", `{"name": "lib", "types": "new.d.ts"}`, 0o644)
	h.compile(t, "/p/node_modules/lib/package.json")
	got, err = h.compiler.prog.ResolveModule("lib", "/p/src/main.ts")
	require.NoError(t, err)
	assert.Equal(t, "/p/node_modules/lib/new.d.ts", got)
}

func TestCompile_FailedCycleKeepsChangesAffected(t *testing.T) {
	mfs := testutil.NewProjectFS(t, "/p", abc)
	builder := &flakyBuilder{Builder: program.NewHost(mfs, program.Options{Root: "/p/src"}, nil)}
	c, err := New(builder, emit.NewEsbuildEmitter(mfs, "/p/src", "/p/dist"), emit.NewStore(mfs), newFakeBundler(), Options{
		ProjectRoot: "/p/src",
		OutDir:      "/p/dist",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Compile(context.Background(), nil)
	require.NoError(t, err)

	mfs.AddFile("/p/src/a.ts", "export const A = 2;\n", 0o644)
	builder.failNext.Store(true)
	_, err = c.Compile(context.Background(), []string{"/p/src/a.ts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transient read error")

	res, err := c.Compile(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, c.Deps().Verify())
	assert.Equal(t, src("a.ts", "b.ts", "c.ts"), res.AffectedFiles)
	assert.Equal(t, src("a.ts"), res.EmittedFiles)
	data, err := mfs.ReadFile("/p/dist/a.js")
	require.NoError(t, err)
	assert.Contains(t, string(data), "A = 2")

	res, err = c.Compile(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.AffectedFiles, "a completed cycle delivers the pending changes")
}

func TestNew_RequiresEmitter(t *testing.T) {
	_, err := New(failingBuilder{}, nil, nil, newFakeBundler(), Options{})
	assert.Error(t, err)
}

func TestCompile_Metrics(t *testing.T) {
	m := metrics.New()
	h := newHarness(t, abc, Options{Metrics: m})
	h.compile(t)
	h.compile(t, "/p/src/b.ts")

	expected := `
# HELP ripple_compile_generations_total Completed compile cycles
# TYPE ripple_compile_generations_total counter
ripple_compile_generations_total 2
# HELP ripple_compile_affected_files_total Files reported affected across all cycles
# TYPE ripple_compile_affected_files_total counter
ripple_compile_affected_files_total 5
`
	require.NoError(t, promtest.GatherAndCompare(m.Registry, strings.NewReader(expected),
		"ripple_compile_generations_total", "ripple_compile_affected_files_total"))

	n, err := promtest.GatherAndCount(m.Registry, "ripple_source_cache_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "program-built", PhaseProgramBuilt.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
