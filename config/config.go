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

// Package config loads ripple project configuration from a ripple.yaml
// (or .yml, .json, .toml) file, RIPPLE_* environment variables and
// command-line flags, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"bennypowers.dev/ripple/fs"
	"bennypowers.dev/ripple/paths"
	"bennypowers.dev/ripple/program"
)

// ErrInvalid is returned when the configuration cannot describe a build.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes the environment variables that override settings.
const EnvPrefix = "RIPPLE"

// configNames are the config files looked for in the project root.
var configNames = []string{"ripple.yaml", "ripple.yml", "ripple.json", "ripple.toml"}

// Config is a resolved project configuration. All paths are absolute.
type Config struct {
	// Root is the project root; relative settings are resolved against it.
	Root string `mapstructure:"-" json:"root"`
	// File is the config file that was read, if any.
	File string `mapstructure:"-" json:"file,omitempty"`

	SrcDir  string   `mapstructure:"srcDir" json:"srcDir"`
	OutDir  string   `mapstructure:"outDir" json:"outDir"`
	Include []string `mapstructure:"include" json:"include"`
	Exclude []string `mapstructure:"exclude" json:"exclude"`
	// Scope lists the directories whose files join the dependency graph.
	// Defaults to SrcDir.
	Scope           []string `mapstructure:"scope" json:"scope"`
	Bundle          bool     `mapstructure:"bundle" json:"bundle"`
	GlobalStyle     string   `mapstructure:"globalStyle" json:"globalStyle,omitempty"`
	Sourcemap       bool     `mapstructure:"sourcemap" json:"sourcemap"`
	SourceCacheSize int      `mapstructure:"sourceCacheSize" json:"sourceCacheSize"`
	Conditions      []string `mapstructure:"conditions" json:"conditions,omitempty"`
}

// SetDefaults registers every key with its default, so environment
// variables reach keys no file or flag mentions.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("srcDir", "src")
	v.SetDefault("outDir", "dist")
	v.SetDefault("include", program.DefaultInclude)
	v.SetDefault("exclude", program.DefaultExclude)
	v.SetDefault("scope", []string{})
	v.SetDefault("bundle", false)
	v.SetDefault("globalStyle", "")
	v.SetDefault("sourcemap", false)
	v.SetDefault("sourceCacheSize", program.DefaultSourceCacheSize)
	v.SetDefault("conditions", []string{})
}

// Load reads the configuration of the project at root. configFile names
// an explicit config file; when empty, root is searched for one. Flags
// must already be bound to v.
func Load(fsys fs.FileSystem, v *viper.Viper, root, configFile string) (*Config, error) {
	root = paths.Norm(root)
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = findConfigFile(fsys, root)
	} else {
		configFile = abs(root, configFile)
	}
	if configFile != "" {
		data, err := fsys.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
		v.SetConfigType(strings.TrimPrefix(path.Ext(configFile), "."))
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w: %w", configFile, ErrInvalid, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w: %w", ErrInvalid, err)
	}
	cfg.Root = root
	cfg.File = configFile
	cfg.SrcDir = abs(root, cfg.SrcDir)
	cfg.OutDir = abs(root, cfg.OutDir)
	if cfg.GlobalStyle != "" {
		cfg.GlobalStyle = abs(root, cfg.GlobalStyle)
	}
	if len(cfg.Scope) == 0 {
		cfg.Scope = []string{cfg.SrcDir}
	} else {
		for i, s := range cfg.Scope {
			cfg.Scope[i] = abs(root, s)
		}
	}

	if err := cfg.validate(fsys); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate(fsys fs.FileSystem) error {
	if info, err := fsys.Stat(c.SrcDir); err != nil || !info.IsDir() {
		return fmt.Errorf("srcDir %s is not a directory: %w", c.SrcDir, ErrInvalid)
	}
	if c.OutDir == c.SrcDir {
		return fmt.Errorf("outDir must differ from srcDir (%s): %w", c.SrcDir, ErrInvalid)
	}
	if c.SourceCacheSize < 0 {
		return fmt.Errorf("sourceCacheSize must not be negative: %w", ErrInvalid)
	}
	if c.GlobalStyle != "" && !fsys.Exists(c.GlobalStyle) {
		return fmt.Errorf("globalStyle %s does not exist: %w", c.GlobalStyle, ErrInvalid)
	}
	return nil
}

// HostOptions returns the program host options for this project.
func (c *Config) HostOptions() program.Options {
	return program.Options{
		Root:       c.SrcDir,
		Include:    c.Include,
		Exclude:    c.Exclude,
		Conditions: c.Conditions,
	}
}

// AnalysisScope returns the in-scope set of the dependency graph.
func (c *Config) AnalysisScope() *paths.Scope {
	return paths.NewScope(c.Scope, c.Exclude)
}

func findConfigFile(fsys fs.FileSystem, root string) string {
	for _, name := range configNames {
		if p := path.Join(root, name); fsys.Exists(p) {
			return p
		}
	}
	return ""
}

func abs(root, p string) string {
	p = filepath.ToSlash(p)
	if path.IsAbs(p) {
		return paths.Norm(p)
	}
	return paths.Norm(path.Join(root, p))
}

// FindProjectRoot walks up from startDir to the closest directory holding
// a ripple config file, tsconfig.json or package.json, stopping at the
// repository root. It returns startDir when nothing is found.
func FindProjectRoot(fsys fs.FileSystem, startDir string) string {
	startDir = paths.Norm(startDir)
	dir := startDir
	for {
		if findConfigFile(fsys, dir) != "" {
			return dir
		}
		for _, marker := range []string{"tsconfig.json", "package.json"} {
			if stat, err := fsys.Stat(path.Join(dir, marker)); err == nil && !stat.IsDir() {
				return dir
			}
		}
		if stat, err := fsys.Stat(path.Join(dir, ".git")); err == nil && stat.IsDir() {
			return dir
		}

		parent := path.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}
