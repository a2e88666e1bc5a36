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

// Package compiler runs incremental build cycles: it invalidates what a
// change touched, rebuilds the program, re-analyzes the files that lost
// their edges, and reports diagnostics and output only for the files the
// change affects.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"bennypowers.dev/ripple/analyze"
	"bennypowers.dev/ripple/depcache"
	"bennypowers.dev/ripple/diag"
	"bennypowers.dev/ripple/emit"
	"bennypowers.dev/ripple/internal/logging"
	"bennypowers.dev/ripple/internal/metrics"
	"bennypowers.dev/ripple/paths"
	"bennypowers.dev/ripple/program"
	"bennypowers.dev/ripple/style"
)

// Options configures a Compiler.
type Options struct {
	// ProjectRoot is the project source tree. Diagnostics and output are
	// produced only for files below it, unless Bundle is set.
	ProjectRoot string
	// OutDir receives emitted stylesheets.
	OutDir string
	// Scope limits dependency analysis. Defaults to ProjectRoot.
	Scope *paths.Scope
	// Bundle also emits affected files outside ProjectRoot. Their outputs
	// are kept in memory and never written.
	Bundle bool
	// GlobalStyle is an optional stylesheet bundled every cycle.
	GlobalStyle string
	// NoEmit reports affected files and diagnostics without emitting.
	NoEmit          bool
	SourceCacheSize int

	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Result is the outcome of one cycle.
type Result struct {
	Generation int `json:"generation"`
	// AffectedFiles are the files the change reached, sorted.
	AffectedFiles []string `json:"affectedFiles"`
	// WatchFiles are every file whose change can affect the build, sorted.
	WatchFiles  []string          `json:"watchFiles"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
	// EmittedFiles are the sources whose output changed, sorted.
	EmittedFiles []string `json:"emittedFiles"`
	// Outputs are the outputs produced this cycle, including unchanged
	// ones and in-memory outputs of out-of-tree files.
	Outputs []emit.Output `json:"outputs,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Compiler owns the dependency graph and caches of one project across
// build generations.
type Compiler struct {
	mu sync.Mutex

	builder  program.Builder
	emitter  emit.Emitter
	store    *emit.Store
	styles   *style.Tracker
	deps     *depcache.Cache
	analyzer *analyze.Analyzer
	sources  *program.SourceCache
	opts     Options
	logger   logging.Logger

	phase      atomic.Int32
	generation int
	prog       program.Program
	// undelivered are files a failed cycle invalidated. They stay affected
	// until a cycle completes.
	undelivered []string
	// outputs are the last emitted outputs, by output path.
	outputs map[string]emit.Output
}

// New creates a compiler building programs with builder, emitting with
// emitter into store and bundling stylesheets with bundler.
func New(builder program.Builder, emitter emit.Emitter, store *emit.Store, bundler style.Bundler, opts Options) (*Compiler, error) {
	if builder == nil {
		return nil, errors.New("compiler: a program builder is required")
	}
	if emitter == nil && !opts.NoEmit {
		return nil, errors.New("compiler: an emitter is required unless NoEmit is set")
	}
	opts.ProjectRoot = paths.Norm(opts.ProjectRoot)
	opts.OutDir = paths.Norm(opts.OutDir)
	opts.GlobalStyle = paths.Norm(opts.GlobalStyle)
	if opts.Scope == nil {
		opts.Scope = paths.NewScope([]string{opts.ProjectRoot}, nil)
	}

	sources, err := program.NewSourceCache(opts.SourceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating source cache: %w", err)
	}
	if opts.Metrics != nil {
		opts.Metrics.RegisterSourceCache(sources.Stats)
	}

	logger := logging.OrDiscard(opts.Logger)
	deps := depcache.New()
	return &Compiler{
		builder:  builder,
		emitter:  emitter,
		store:    store,
		styles:   style.NewTracker(bundler),
		deps:     deps,
		analyzer: analyze.New(deps, opts.Scope, logger),
		sources:  sources,
		opts:     opts,
		logger:   logger,
		outputs:  make(map[string]emit.Output),
	}, nil
}

// Phase returns the phase of the running cycle, or PhaseIdle.
func (c *Compiler) Phase() Phase {
	return Phase(c.phase.Load())
}

func (c *Compiler) setPhase(p Phase) {
	c.phase.Store(int32(p))
}

// Deps returns the dependency graph.
func (c *Compiler) Deps() *depcache.Cache {
	return c.deps
}

// Close releases the parsed sources.
func (c *Compiler) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prog = nil
	c.sources.Close()
	return nil
}

// Compile runs one cycle for the given modified files. The first cycle
// builds everything; modified is ignored. Concurrent calls run one after
// the other.
func (c *Compiler) Compile(ctx context.Context, modified []string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.setPhase(PhaseIdle)

	start := time.Now()
	modified = paths.NormAll(modified)
	first := c.generation == 0

	c.setPhase(PhasePreparing)
	var styleAffected, invalidated []string
	if !first {
		mark := time.Now()
		styleAffected = c.styles.Invalidate(modified)
		changed := union(modified, styleAffected)
		if tree := c.deps.AffectedTree(changed); len(tree) > 0 {
			c.logger.Debug("affected tree\n" + depcache.FormatTree(tree))
		}
		if pt, ok := c.builder.(program.PackageTracker); ok {
			pt.InvalidatePackages(modified)
		}
		invalidated = c.deps.Invalidate(changed)
		c.undelivered = union(c.undelivered, changed, invalidated)
		for _, f := range changed {
			c.sources.Remove(f)
		}
		stale := make(map[string]bool, len(invalidated))
		for _, f := range invalidated {
			stale[f] = true
		}
		maps.DeleteFunc(c.outputs, func(_ string, out emit.Output) bool {
			return stale[out.Source]
		})
		c.observe("invalidate", mark)
	}

	mark := time.Now()
	prog, err := c.builder.CreateProgram(ctx, c.sources)
	if err != nil {
		return nil, fmt.Errorf("creating program: %w", err)
	}
	c.prog = prog
	c.sources.Sweep()
	c.setPhase(PhaseProgramBuilt)
	c.observe("program", mark)

	mark = time.Now()
	report, err := c.analyzer.Analyze(ctx, prog)
	if err != nil {
		return nil, fmt.Errorf("analyzing: %w", err)
	}
	c.setPhase(PhaseAnalyzed)
	c.observe("analyze", mark)

	var affected []string
	if first {
		for _, f := range c.deps.Files() {
			if c.opts.Scope.Contains(f) {
				affected = append(affected, f)
			}
		}
	} else {
		affected = union(c.deps.AffectedFiles(modified), c.undelivered)
	}

	mark = time.Now()
	cy := &cycle{c: c, prog: prog, affected: affected}
	cy.collectDiagnostics(report.Diagnostics)
	if err := cy.emit(ctx); err != nil {
		return nil, err
	}
	c.setPhase(PhaseEmitted)
	c.observe("emit", mark)

	c.generation++
	c.undelivered = nil
	diag.Sort(cy.diags)
	result := &Result{
		Generation:    c.generation,
		AffectedFiles: affected,
		WatchFiles:    c.watchFiles(),
		Diagnostics:   cy.diags,
		EmittedFiles:  slices.Sorted(maps.Keys(cy.emitted)),
		Outputs:       cy.outputs,
		Elapsed:       time.Since(start),
	}
	if result.Diagnostics == nil {
		result.Diagnostics = []diag.Diagnostic{}
	}

	if c.opts.Metrics != nil {
		kinds := make([]string, len(result.Diagnostics))
		for i, d := range result.Diagnostics {
			kinds[i] = string(d.Kind)
		}
		c.opts.Metrics.RecordCycle(len(affected), len(result.EmittedFiles), len(c.deps.Files()), kinds)
	}
	c.logger.Info("compiled",
		"generation", result.Generation,
		"affected", len(result.AffectedFiles),
		"emitted", len(result.EmittedFiles),
		"diagnostics", len(result.Diagnostics),
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

func (c *Compiler) observe(phase string, since time.Time) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ObservePhase(phase, time.Since(since))
	}
}

func (c *Compiler) watchFiles() []string {
	extra := c.styles.Files()
	if c.opts.GlobalStyle != "" {
		extra = append(extra, c.opts.GlobalStyle)
	}
	if pt, ok := c.builder.(program.PackageTracker); ok {
		extra = append(extra, pt.PackageFiles()...)
	}
	return union(c.deps.Files(), extra)
}

// inTree reports whether diagnostics and output are produced for file.
func (c *Compiler) inTree(file string) bool {
	return paths.IsChild(file, c.opts.ProjectRoot)
}

// cycle collects the diagnostics and output of one Compile call.
type cycle struct {
	c        *Compiler
	prog     program.Program
	affected []string

	mu      sync.Mutex
	diags   []diag.Diagnostic
	outputs []emit.Output
	emitted map[string]bool
}

func (cy *cycle) addDiagnostic(d diag.Diagnostic) {
	cy.mu.Lock()
	cy.diags = append(cy.diags, d)
	cy.mu.Unlock()
}

// collectDiagnostics keeps the syntax and resolution diagnostics of
// affected in-tree files.
func (cy *cycle) collectDiagnostics(analysis []diag.Diagnostic) {
	affected := make(map[string]bool, len(cy.affected))
	for _, f := range cy.affected {
		affected[f] = true
	}
	for _, d := range analysis {
		if affected[d.File] && cy.c.inTree(d.File) {
			cy.diags = append(cy.diags, d)
		}
	}
	for _, f := range cy.affected {
		if !cy.c.inTree(f) {
			continue
		}
		if sf, ok := cy.prog.SourceFile(f); ok {
			cy.diags = append(cy.diags, cy.prog.Diagnostics(sf)...)
		}
	}
}

// emit emits affected sources and bundles their stylesheets.
func (cy *cycle) emit(ctx context.Context) error {
	c := cy.c
	cy.emitted = make(map[string]bool)
	if c.opts.NoEmit {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, file := range cy.affected {
		inTree := c.inTree(file)
		if !inTree && !c.opts.Bundle {
			continue
		}
		sf, ok := cy.prog.SourceFile(file)
		if !ok {
			if !cy.prog.FileExists(file) && c.store != nil {
				if err := c.store.RemoveSource(file); err != nil {
					c.logger.Warn("removing stale output", "file", file, "error", err)
				}
			}
			continue
		}
		g.Go(func() error {
			if err := cy.emitSource(gctx, sf.Path, inTree); err != nil {
				return err
			}
			return cy.bundleStyles(gctx, sf, inTree)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if c.opts.GlobalStyle != "" {
		res := c.styles.Bundle(ctx, "", c.opts.GlobalStyle, c.opts.GlobalStyle)
		if err := cy.styleOutput(res, c.opts.GlobalStyle, c.opts.GlobalStyle, c.inTree(c.opts.GlobalStyle)); err != nil {
			return err
		}
	}
	slices.SortFunc(cy.outputs, func(a, b emit.Output) int { return strings.Compare(a.Path, b.Path) })
	return nil
}

func (cy *cycle) emitSource(ctx context.Context, file string, inTree bool) error {
	outs, err := cy.c.emitter.Emit(ctx, file)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d := diag.Diagnostic{File: file, Severity: diag.Error, Kind: diag.KindEmit, Message: err.Error()}
		var emitErr *emit.Error
		if errors.As(err, &emitErr) {
			d.Line, d.Column, d.Message = emitErr.Line, emitErr.Column, emitErr.Message
		}
		cy.addDiagnostic(d)
		return nil
	}
	return cy.record(file, outs, inTree)
}

// bundleStyles bundles the component stylesheets of sf. Inline styles of
// one file form a single stylesheet.
func (cy *cycle) bundleStyles(ctx context.Context, sf *program.SourceFile, inTree bool) error {
	var inline []string
	for _, res := range cy.prog.Stylesheets(sf) {
		if res.File == "" {
			inline = append(inline, res.Data)
			continue
		}
		result := cy.c.styles.Bundle(ctx, "", sf.Path, res.File)
		if err := cy.styleOutput(result, sf.Path, res.File, inTree); err != nil {
			return err
		}
	}
	if len(inline) > 0 {
		result := cy.c.styles.Bundle(ctx, strings.Join(inline, "\n"), sf.Path, "")
		return cy.styleOutput(result, sf.Path, sf.Path, inTree)
	}
	return nil
}

// inlineStyleExt names the stylesheet emitted for a file's inline styles,
// next to its script output.
const inlineStyleExt = ".styles.css"

// styleOutput turns a bundle into an output of source, or a diagnostic on
// containingFile.
func (cy *cycle) styleOutput(res *style.Result, containingFile, source string, inTree bool) error {
	if res.Err != nil {
		d := diag.Diagnostic{
			File:     containingFile,
			Severity: diag.Error,
			Kind:     diag.KindBundle,
			Message:  res.Err.Error(),
		}
		var bundleErr *style.BundleError
		if errors.As(res.Err, &bundleErr) {
			d.File, d.Line, d.Column, d.Message = bundleErr.File, bundleErr.Line, bundleErr.Column, bundleErr.Message
		}
		cy.addDiagnostic(d)
		return nil
	}
	ext := ".css"
	if program.IsSourcePath(source) {
		ext = inlineStyleExt
	}
	out := emit.Output{
		Source:   source,
		Path:     emit.OutputPath(cy.c.opts.ProjectRoot, cy.c.opts.OutDir, source, ext),
		Contents: []byte(res.Contents),
	}
	return cy.record(source, []emit.Output{out}, inTree)
}

// record writes in-tree outputs through the store and keeps out-of-tree
// ones in memory. Either way a source counts as emitted only when one of
// its outputs changed.
func (cy *cycle) record(source string, outs []emit.Output, inTree bool) error {
	c := cy.c
	changed := false
	if inTree && c.store != nil {
		for _, out := range outs {
			written, err := c.store.Write(out)
			if err != nil {
				return err
			}
			changed = changed || written
		}
	}

	cy.mu.Lock()
	defer cy.mu.Unlock()
	for _, out := range outs {
		if !inTree || c.store == nil {
			prev, ok := c.outputs[out.Path]
			changed = changed || !ok || !bytes.Equal(prev.Contents, out.Contents)
		}
		c.outputs[out.Path] = out
	}
	cy.outputs = append(cy.outputs, outs...)
	if changed {
		cy.emitted[source] = true
	}
	return nil
}

// union merges sorted or unsorted path lists into one sorted, deduplicated
// list.
func union(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
