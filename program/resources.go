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
	"bytes"
	"path"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/net/html"

	"bennypowers.dev/ripple/paths"
)

// componentResources are the external files and inline styles a file's
// @Component decorators declare.
type componentResources struct {
	templates    []string
	styleFiles   []string
	inlineStyles []string
}

// scanComponents reads the @Component decorators of sf. File references
// are resolved against the directory of sf.
func scanComponents(sf *SourceFile) (*componentResources, error) {
	qm, err := GetQueryManager()
	if err != nil {
		return nil, err
	}
	query, err := qm.Query(sf.Path, "decorators")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	res := &componentResources{}
	dir := path.Dir(sf.Path)
	file := func(spec string) string {
		return paths.Norm(path.Join(dir, spec))
	}

	names := query.CaptureNames()
	matches := cursor.Matches(query, sf.Root(), sf.Text)
	for match := matches.Next(); match != nil; match = matches.Next() {
		var name string
		var config *ts.Node
		for _, c := range match.Captures {
			switch names[c.Index] {
			case "decorator.name":
				name = c.Node.Utf8Text(sf.Text)
			case "decorator.config":
				node := c.Node
				config = &node
			}
		}
		if name != "Component" || config == nil {
			continue
		}

		for _, pair := range namedChildren(config) {
			if pair.Kind() != "pair" {
				continue
			}
			value := pair.ChildByFieldName("value")
			switch memberName(sf, pair.ChildByFieldName("key")) {
			case "templateUrl":
				if s, ok := stringValue(sf, value); ok {
					res.templates = append(res.templates, file(s))
				}
			case "styleUrl":
				if s, ok := stringValue(sf, value); ok {
					res.styleFiles = append(res.styleFiles, file(s))
				}
			case "styleUrls":
				for _, s := range stringList(sf, value) {
					res.styleFiles = append(res.styleFiles, file(s))
				}
			case "styles":
				res.inlineStyles = append(res.inlineStyles, stringList(sf, value)...)
			}
		}
	}
	return res, nil
}

// stringList returns the string literals of an array, or the single string
// a non-array value spells.
func stringList(sf *SourceFile, n *ts.Node) []string {
	if n == nil {
		return nil
	}
	if n.Kind() != "array" {
		if s, ok := stringValue(sf, n); ok {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, el := range namedChildren(n) {
		if s, ok := stringValue(sf, el); ok {
			out = append(out, s)
		}
	}
	return out
}

// assetAttributes are the HTML attributes that reference files.
var assetAttributes = map[string]bool{
	"src":    true,
	"href":   true,
	"poster": true,
}

// templateAssets returns the relative file references in an HTML
// template, resolved against the template's directory.
func templateAssets(templatePath string, content []byte) []string {
	dir := path.Dir(templatePath)
	seen := make(map[string]bool)
	var out []string

	z := html.NewTokenizer(bytes.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken, html.SelfClosingTagToken:
			_, hasAttr := z.TagName()
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if !assetAttributes[string(key)] {
					continue
				}
				if ref, ok := localReference(string(val)); ok {
					p := paths.Norm(path.Join(dir, ref))
					if !seen[p] {
						seen[p] = true
						out = append(out, p)
					}
				}
			}
		}
	}
}

// localReference strips query and fragment from a relative URL, rejecting
// absolute, remote and template-bound references.
func localReference(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "/") ||
		strings.Contains(ref, ":") || strings.Contains(ref, "{{") {
		return "", false
	}
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	return ref, ref != ""
}
