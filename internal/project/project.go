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

// Package project wires a compiler for the project the command line
// points at: configuration, host, emitter, bundler, logging and metrics.
package project

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"bennypowers.dev/ripple/compiler"
	"bennypowers.dev/ripple/config"
	"bennypowers.dev/ripple/emit"
	"bennypowers.dev/ripple/fs"
	"bennypowers.dev/ripple/internal/logging"
	"bennypowers.dev/ripple/internal/metrics"
	"bennypowers.dev/ripple/program"
	"bennypowers.dev/ripple/style"
)

// configFlags maps command-line flags to config keys.
var configFlags = map[string]string{
	"src-dir":      "srcDir",
	"out-dir":      "outDir",
	"bundle":       "bundle",
	"sourcemap":    "sourcemap",
	"global-style": "globalStyle",
}

// AddConfigFlags adds the flags that override config file settings.
func AddConfigFlags(flags *pflag.FlagSet) {
	flags.String("src-dir", "", "Source directory (default: src)")
	flags.String("out-dir", "", "Output directory (default: dist)")
	flags.Bool("bundle", false, "Also emit files outside the source directory, in memory")
	flags.Bool("sourcemap", false, "Emit external source maps")
	flags.String("global-style", "", "Global stylesheet to bundle")
}

// BindConfigFlags binds the config flags of the running command to v.
// Commands call it when they run, so commands sharing flag names do not
// override each other's bindings.
func BindConfigFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for flag, key := range configFlags {
		f := flags.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}

// Options tunes what Open builds.
type Options struct {
	// NoEmit builds a compiler that only analyzes.
	NoEmit bool
	// Stderr receives log output.
	Stderr io.Writer
}

// Project is an opened project.
type Project struct {
	FS       fs.FileSystem
	Config   *config.Config
	Logger   *logging.ConsoleLogger
	Metrics  *metrics.Metrics
	Compiler *compiler.Compiler
}

// Open loads the configuration of the project named by v's "project" key
// and creates its compiler.
func Open(v *viper.Viper, opts Options) (*Project, error) {
	osfs := fs.NewOSFileSystem()
	start, err := filepath.Abs(v.GetString("project"))
	if err != nil {
		return nil, fmt.Errorf("invalid project directory: %w", err)
	}
	root := config.FindProjectRoot(osfs, start)
	cfg, err := config.Load(osfs, v, root, v.GetString("config"))
	if err != nil {
		return nil, err
	}

	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	logger := logging.New(opts.Stderr, logging.Options{
		Debug: v.GetBool("verbose"),
		Quiet: v.GetBool("quiet"),
	})
	logger.Debug("project", "root", cfg.Root, "config", cfg.File, "src", cfg.SrcDir, "out", cfg.OutDir)

	m := metrics.New()
	host := program.NewHost(osfs, cfg.HostOptions(), logger)
	emitter := emit.NewEsbuildEmitter(osfs, cfg.SrcDir, cfg.OutDir).WithSourcemap(cfg.Sourcemap)
	c, err := compiler.New(host, emitter, emit.NewStore(osfs), &style.EsbuildBundler{OutDir: cfg.OutDir}, compiler.Options{
		ProjectRoot:     cfg.SrcDir,
		OutDir:          cfg.OutDir,
		Scope:           cfg.AnalysisScope(),
		Bundle:          cfg.Bundle,
		GlobalStyle:     cfg.GlobalStyle,
		NoEmit:          opts.NoEmit,
		SourceCacheSize: cfg.SourceCacheSize,
		Logger:          logger,
		Metrics:         m,
	})
	if err != nil {
		return nil, err
	}
	return &Project{FS: osfs, Config: cfg, Logger: logger, Metrics: m, Compiler: c}, nil
}

// WatchRoots are the directories a watcher should cover.
func (p *Project) WatchRoots() []string {
	roots := append([]string{p.Config.SrcDir}, p.Config.Scope...)
	slices.Sort(roots)
	return slices.Compact(roots)
}

// Close releases the compiler.
func (p *Project) Close() error {
	return p.Compiler.Close()
}
