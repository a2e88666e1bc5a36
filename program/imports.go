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

	ts "github.com/tree-sitter/go-tree-sitter"

	"bennypowers.dev/ripple/paths"
)

// Parse parses TypeScript content into a SourceFile and extracts its
// module specifiers. The caller owns the returned tree.
func Parse(filePath string, content []byte) (*SourceFile, error) {
	d := dialectOf(filePath)
	parser := getParser(d)
	defer putParser(d, parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s", filePath)
	}

	sf := &SourceFile{
		Path:        filePath,
		Text:        content,
		Tree:        tree,
		Declaration: paths.IsDeclaration(filePath),
	}

	imports, err := extractImports(sf)
	if err != nil {
		tree.Close()
		return nil, err
	}
	sf.Imports = imports
	return sf, nil
}

// extractImports runs the imports query over a parsed file.
func extractImports(sf *SourceFile) ([]ModuleImport, error) {
	qm, err := GetQueryManager()
	if err != nil {
		return nil, err
	}
	query, err := qm.Query(sf.Path, "imports")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var imports []ModuleImport
	matches := cursor.Matches(query, sf.Root(), sf.Text)
	captureNames := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}

		for _, capture := range match.Captures {
			pos := capture.Node.StartPosition()
			imp := ModuleImport{
				Specifier: capture.Node.Utf8Text(sf.Text),
				Line:      int(pos.Row) + 1,
				Column:    int(pos.Column) + 1,
			}
			switch captureNames[capture.Index] {
			case "import.spec":
			case "dynamicImport.spec":
				imp.IsDynamic = true
			case "reexport.spec":
				imp.IsExport = true
			default:
				continue
			}
			imports = append(imports, imp)
		}
	}

	return imports, nil
}
