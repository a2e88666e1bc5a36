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

// Package affected provides the affected command for ripple.
package affected

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/ripple/depcache"
	"bennypowers.dev/ripple/internal/output"
	"bennypowers.dev/ripple/internal/project"
	"bennypowers.dev/ripple/paths"
)

// Cmd is the affected command. It analyzes the project without emitting
// and lists the files a change to the given files would affect.
var Cmd = &cobra.Command{
	Use:   "affected <file>...",
	Short: "List the files affected by changes to the given files",
	Long: `Affected analyzes the project and prints every file that depends on a symbol
exported by the given files, following re-exports. Nothing is emitted.

With --tree, each affected file is printed under the file and symbol that
caused it to be affected.`,
	Example: `  # Which files depend on button.ts?
  ripple affected src/button.ts

  # Show why
  ripple affected src/button.ts --tree`,
	Args: cobra.MinimumNArgs(1),
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
	Cmd.Flags().Bool("tree", false, "Show the dependency path to each affected file")
	project.AddConfigFlags(Cmd.Flags())
}

func run(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("error reading format flag: %w", err)
	}
	if err := output.ValidateFormat(format); err != nil {
		return err
	}
	showTree, err := cmd.Flags().GetBool("tree")
	if err != nil {
		return fmt.Errorf("error reading tree flag: %w", err)
	}
	if err := project.BindConfigFlags(viper.GetViper(), cmd.Flags()); err != nil {
		return err
	}

	p, err := project.Open(viper.GetViper(), project.Options{NoEmit: true, Stderr: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if _, err := p.Compiler.Compile(cmd.Context(), nil); err != nil {
		return err
	}

	modified := make([]string, 0, len(args))
	for _, arg := range args {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid file %s: %w", arg, err)
		}
		modified = append(modified, paths.Norm(abs))
	}

	deps := p.Compiler.Deps()
	affected := deps.AffectedFiles(modified)
	var tree []*depcache.TreeNode
	if showTree {
		tree = deps.AffectedTree(modified)
	}
	return output.Affected(p.FS, cmd.OutOrStdout(), modified, affected, tree, format)
}
