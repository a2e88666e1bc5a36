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

// Package version reports the ripple build and the versions of the
// parsing and bundling libraries compiled into it.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags "-X bennypowers.dev/ripple/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitTag    = "unknown"
	BuildTime = "unknown"
	GitDirty  = "" // "dirty" for builds from a modified tree
)

// toolchain lists the modules whose versions decide what ripple can parse
// and emit.
var toolchain = map[string]string{
	"github.com/tree-sitter/go-tree-sitter":         "tree-sitter",
	"github.com/tree-sitter/tree-sitter-typescript": "tree-sitter-typescript",
	"github.com/evanw/esbuild":                      "esbuild",
}

// Info describes a ripple build.
type Info struct {
	Version   string            `json:"version"`
	GitCommit string            `json:"gitCommit"`
	GitTag    string            `json:"gitTag"`
	BuildTime string            `json:"buildTime"`
	Dirty     bool              `json:"dirty"`
	GoVersion string            `json:"goVersion"`
	Toolchain map[string]string `json:"toolchain,omitempty"`
}

// Get returns the build information.
func Get() Info {
	info := Info{
		Version:   GetVersion(),
		GitCommit: GitCommit,
		GitTag:    GitTag,
		BuildTime: BuildTime,
		Dirty:     GitDirty == "dirty",
		GoVersion: runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		info.Toolchain = toolchainVersions(bi.Deps)
	}
	return info
}

func toolchainVersions(deps []*debug.Module) map[string]string {
	out := make(map[string]string)
	for _, dep := range deps {
		if name, ok := toolchain[dep.Path]; ok {
			out[name] = dep.Version
		}
	}
	return out
}

// GetVersion returns the version string: the ldflags version, the module
// version, or one derived from the git tag and commit.
func GetVersion() string {
	if Version != "dev" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "(devel)" && bi.Main.Version != "" {
		return bi.Main.Version
	}
	if GitTag == "unknown" || GitCommit == "unknown" {
		return "dev"
	}

	v := GitTag
	short := GitCommit
	if len(short) > 7 {
		short = short[:7]
	}
	if short != "" && !strings.HasSuffix(GitTag, short) {
		v = fmt.Sprintf("%s-%s", GitTag, short)
	}
	if GitDirty == "dirty" {
		v += "-dirty"
	}
	return v
}

// String renders the info for humans.
func (i Info) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "ripple %s", i.Version)
	if i.GitCommit != "unknown" {
		fmt.Fprintf(&b, " (commit: %s)", i.GitCommit)
	}
	fmt.Fprintf(&b, "\n%s", i.GoVersion)
	for _, name := range []string{"tree-sitter", "tree-sitter-typescript", "esbuild"} {
		if v, ok := i.Toolchain[name]; ok {
			fmt.Fprintf(&b, "\n%s %s", name, v)
		}
	}
	return b.String()
}
