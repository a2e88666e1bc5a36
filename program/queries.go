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
	"embed"
	"fmt"
	"path"
	"strings"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*/*.scm
var queryFiles embed.FS

// dialect selects the grammar for a file.
type dialect int

const (
	dialectTS dialect = iota
	dialectTSX
)

func dialectOf(filePath string) dialect {
	if strings.HasSuffix(filePath, ".tsx") {
		return dialectTSX
	}
	return dialectTS
}

// Languages holds pre-initialized tree-sitter language grammars.
var languages = [...]*ts.Language{
	dialectTS:  ts.NewLanguage(tsTypescript.LanguageTypescript()),
	dialectTSX: ts.NewLanguage(tsTypescript.LanguageTSX()),
}

// Parser pools for reuse. Parsers are not safe for concurrent use, so each
// parse worker takes its own.
var parserPools = [...]*sync.Pool{
	dialectTS:  newParserPool(dialectTS),
	dialectTSX: newParserPool(dialectTSX),
}

func newParserPool(d dialect) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages[d]); err != nil {
				panic("failed to set TypeScript language: " + err.Error())
			}
			return parser
		},
	}
}

func getParser(d dialect) *ts.Parser {
	return parserPools[d].Get().(*ts.Parser)
}

func putParser(d dialect, p *ts.Parser) {
	p.Reset()
	parserPools[d].Put(p)
}

// QueryManager holds compiled tree-sitter queries per dialect.
type QueryManager struct {
	mu      sync.Mutex
	closed  bool
	queries [2]map[string]*ts.Query
}

// NewQueryManager compiles the named queries from queries/typescript for
// both the TypeScript and TSX grammars.
func NewQueryManager(names []string) (*QueryManager, error) {
	qm := &QueryManager{}
	for d := range qm.queries {
		qm.queries[d] = make(map[string]*ts.Query)
	}

	for _, name := range names {
		queryPath := path.Join("queries", "typescript", name+".scm")
		data, err := queryFiles.ReadFile(queryPath)
		if err != nil {
			qm.Close()
			return nil, fmt.Errorf("failed to read query %s: %w", queryPath, err)
		}
		for d, lang := range languages {
			query, qerr := ts.NewQuery(lang, string(data))
			if qerr != nil {
				qm.Close()
				return nil, fmt.Errorf("failed to parse query %s: %w", name, qerr)
			}
			qm.queries[d][name] = query
		}
	}

	return qm, nil
}

// Close releases all query resources. Safe to call multiple times.
func (qm *QueryManager) Close() {
	qm.mu.Lock()
	if qm.closed {
		qm.mu.Unlock()
		return
	}
	qm.closed = true
	all := qm.queries
	qm.queries = [2]map[string]*ts.Query{}
	qm.mu.Unlock()

	for _, byName := range all {
		for _, q := range byName {
			q.Close()
		}
	}
}

// Query returns a compiled query by name for the grammar of filePath.
func (qm *QueryManager) Query(filePath, name string) (*ts.Query, error) {
	q, ok := qm.queries[dialectOf(filePath)][name]
	if !ok {
		return nil, fmt.Errorf("query not found: %s", name)
	}
	return q, nil
}

// Global query manager singleton. Compiled queries are immutable and
// shared by every program.
var (
	globalQM     *QueryManager
	globalQMOnce sync.Once
	globalQMErr  error
)

// GetQueryManager returns the global query manager instance.
func GetQueryManager() (*QueryManager, error) {
	globalQMOnce.Do(func() {
		globalQM, globalQMErr = NewQueryManager([]string{"imports", "decorators"})
	})
	return globalQM, globalQMErr
}

// ModuleImport is a module specifier referenced by a source file.
type ModuleImport struct {
	Specifier string // The import specifier (e.g., "lit", "./foo.js")
	IsDynamic bool   // True if this is a dynamic import()
	IsExport  bool   // True for export ... from
	Line      int    // 1-based line of the specifier
	Column    int    // 1-based column of the specifier
}
