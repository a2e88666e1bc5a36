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

// Package output renders command results to stdout or to the file named
// by the --output flag.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bennypowers.dev/ripple/compiler"
	"bennypowers.dev/ripple/depcache"
	"bennypowers.dev/ripple/fs"
)

// Formats are the accepted --format values.
var Formats = []string{"text", "json"}

// ValidateFormat rejects unknown formats.
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if f == format {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be one of %s", format, strings.Join(Formats, ", "))
}

// Write sends text to the file named by viper's "output" key, or to w.
func Write(osfs fs.FileSystem, w io.Writer, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, []byte(text), 0644)
	}
	_, err := io.WriteString(w, text)
	return err
}

// Result renders a compile result.
func Result(osfs fs.FileSystem, w io.Writer, res *compiler.Result, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		return Write(osfs, w, string(data))
	}

	var b strings.Builder
	for _, d := range res.Diagnostics {
		fmt.Fprintln(&b, d)
	}
	fmt.Fprintf(&b, "generation %d: %d affected, %d emitted, %d diagnostics (%s)",
		res.Generation, len(res.AffectedFiles), len(res.EmittedFiles), len(res.Diagnostics), res.Elapsed.Round(time.Millisecond))
	return Write(osfs, w, b.String())
}

// affectedJSON is the JSON form of an affected-files query.
type affectedJSON struct {
	Modified []string             `json:"modified"`
	Affected []string             `json:"affected"`
	Tree     []*depcache.TreeNode `json:"tree,omitempty"`
}

// Affected renders the files a change affects. tree, when non-nil, is
// rendered instead of the flat list in text format and alongside it in
// JSON.
func Affected(osfs fs.FileSystem, w io.Writer, modified, affected []string, tree []*depcache.TreeNode, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(affectedJSON{Modified: modified, Affected: affected, Tree: tree}, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding affected files: %w", err)
		}
		return Write(osfs, w, string(data))
	}
	if tree != nil {
		return Write(osfs, w, strings.TrimSuffix(depcache.FormatTree(tree), "\n"))
	}
	return Write(osfs, w, strings.Join(affected, "\n"))
}
