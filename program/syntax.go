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
package program

import (
	"fmt"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/ripple/diag"
)

// maxSyntaxDiagnostics caps the errors reported for one file; after the
// first few, error recovery mostly produces noise.
const maxSyntaxDiagnostics = 20

// syntaxDiagnostics reports the error and missing nodes of sf's tree.
func syntaxDiagnostics(sf *SourceFile) []diag.Diagnostic {
	root := sf.Root()
	if !root.HasError() {
		return nil
	}
	var out []diag.Diagnostic
	var walk func(n *ts.Node)
	walk = func(n *ts.Node) {
		if len(out) >= maxSyntaxDiagnostics {
			return
		}
		switch {
		case n.IsMissing():
			out = append(out, syntaxDiagnostic(sf, n, fmt.Sprintf("missing %s", n.Kind())))
			return
		case n.IsError():
			out = append(out, syntaxDiagnostic(sf, n, fmt.Sprintf("unexpected %s", snippet(sf.NodeText(n)))))
			return
		}
		count := n.ChildCount()
		for i := uint(0); i < count; i++ {
			if c := n.Child(i); c != nil && (c.HasError() || c.IsMissing()) {
				walk(c)
			}
		}
	}
	walk(root)
	return out
}

func syntaxDiagnostic(sf *SourceFile, n *ts.Node, message string) diag.Diagnostic {
	pos := n.StartPosition()
	return diag.Diagnostic{
		File:     sf.Path,
		Line:     int(pos.Row) + 1,
		Column:   int(pos.Column) + 1,
		Severity: diag.Error,
		Kind:     diag.KindSyntax,
		Message:  message,
	}
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	if text == "" {
		return "token"
	}
	return fmt.Sprintf("%q", text)
}
