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

// Package build provides the build command for ripple.
package build

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"bennypowers.dev/ripple/diag"
	"bennypowers.dev/ripple/internal/output"
	"bennypowers.dev/ripple/internal/project"
)

// ErrDiagnostics is returned when a build reports errors.
var ErrDiagnostics = errors.New("build failed")

// Cmd is the build command. It compiles every file of the project once.
var Cmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the project once",
	Long: `Build parses and analyzes every TypeScript file under the source directory,
emits JavaScript and bundled stylesheets to the output directory, and reports
diagnostics. Unchanged outputs are not rewritten.`,
	Example: `  # Build the project in the current directory
  ripple build

  # Build another project with source maps
  ripple build -p ./packages/elements --sourcemap

  # Machine-readable result
  ripple build --format json`,
	Args: cobra.NoArgs,
	RunE: run,
}

func init() {
	Cmd.Flags().StringP("format", "f", "text", "Output format (text, json)")
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
	if err := project.BindConfigFlags(viper.GetViper(), cmd.Flags()); err != nil {
		return err
	}

	p, err := project.Open(viper.GetViper(), project.Options{Stderr: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	res, err := p.Compiler.Compile(cmd.Context(), nil)
	if err != nil {
		return err
	}
	if err := output.Result(p.FS, cmd.OutOrStdout(), res, format); err != nil {
		return err
	}
	if diag.HasErrors(res.Diagnostics) {
		return ErrDiagnostics
	}
	return nil
}
