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
package paths_test

import (
	"slices"
	"testing"

	"bennypowers.dev/ripple/paths"
)

func TestNorm(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/a/b/../c.ts", "/a/c.ts"},
		{"/a//b/./c.ts", "/a/b/c.ts"},
		{"/P/Src/My-Card.ts", "/P/Src/My-Card.ts"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := paths.Norm(tt.in); got != tt.want {
			t.Errorf("Norm(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsChild(t *testing.T) {
	tests := []struct {
		child, parent string
		want          bool
	}{
		{"/p/src/a.ts", "/p/src", true},
		{"/p/src", "/p/src", true},
		{"/p/srcx/a.ts", "/p/src", false},
		{"/p/a.ts", "/", true},
	}
	for _, tt := range tests {
		if got := paths.IsChild(tt.child, tt.parent); got != tt.want {
			t.Errorf("IsChild(%q, %q) = %v, want %v", tt.child, tt.parent, got, tt.want)
		}
	}
}

func TestRelated(t *testing.T) {
	if got := paths.Related("/x/a.d.ts"); !slices.Equal(got, []string{"/x/a.d.ts", "/x/a.js"}) {
		t.Errorf("Related(.d.ts) = %v", got)
	}
	if got := paths.Related("/x/a.js"); !slices.Equal(got, []string{"/x/a.js", "/x/a.d.ts"}) {
		t.Errorf("Related(.js) = %v", got)
	}
	if got := paths.Related("/x/a.ts"); !slices.Equal(got, []string{"/x/a.ts"}) {
		t.Errorf("Related(.ts) = %v", got)
	}
}

func TestScope(t *testing.T) {
	scope := paths.NewScope([]string{"/p", "/shared/lib"}, []string{"**/node_modules/**", "dist/**"})

	tests := []struct {
		path string
		want bool
	}{
		{"/p/src/a.ts", true},
		{"/shared/lib/index.ts", true},
		{"/p/node_modules/lit/index.d.ts", false},
		{"/p/dist/a.js", false},
		{"/elsewhere/a.ts", false},
	}
	for _, tt := range tests {
		if got := scope.Contains(tt.path); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
