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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, path, src string) *SourceFile {
	t.Helper()
	sf, err := Parse(path, []byte(src))
	require.NoError(t, err)
	return sf
}

func TestSourceCacheRetiresReplacedFiles(t *testing.T) {
	c, err := NewSourceCache(2)
	require.NoError(t, err)
	defer c.Close()

	first := mustParse(t, "/p/a.ts", "export const a = 1;")
	c.Add(first)
	second := mustParse(t, "/p/a.ts", "export const a = 2;")
	c.Add(second)

	got, ok := c.Get("/p/a.ts")
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Len(t, c.retired, 1)

	c.Sweep()
	assert.Empty(t, c.retired)
	assert.Len(t, c.doomed, 1, "replaced tree survives one generation")
	c.Sweep()
	assert.Empty(t, c.doomed)
}

func TestSourceCacheEvicts(t *testing.T) {
	c, err := NewSourceCache(1)
	require.NoError(t, err)
	defer c.Close()

	c.Add(mustParse(t, "/p/a.ts", ""))
	c.Add(mustParse(t, "/p/b.ts", ""))
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("/p/a.ts")
	assert.False(t, ok)
	_, ok = c.Get("/p/b.ts")
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)

	c.Remove("/p/b.ts")
	assert.Equal(t, 0, c.Len())
	assert.Len(t, c.retired, 2)
}
