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
package packagejson_test

import (
	"sync"
	"testing"

	"bennypowers.dev/ripple/packagejson"
	"bennypowers.dev/ripple/testutil"
)

func TestMemoryCacheLoad(t *testing.T) {
	mfs := testutil.NewProjectFS(t, "/test", map[string]string{
		"package.json": `{"name": "first", "version": "1.0.0"}`,
	})
	cache := packagejson.NewMemoryCache()

	pkg, err := cache.Load(mfs, "/test/package.json")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if pkg.Name != "first" {
		t.Errorf("Expected name 'first', got %q", pkg.Name)
	}

	// A rewrite is not observed until the entry is invalidated
	if err := mfs.WriteFile("/test/package.json", []byte(`{"name": "second"}`), 0644); err != nil {
		t.Fatal(err)
	}
	pkg, _ = cache.Load(mfs, "/test/package.json")
	if pkg.Name != "first" {
		t.Errorf("Expected cached name 'first', got %q", pkg.Name)
	}

	cache.Invalidate("/test/package.json")
	pkg, err = cache.Load(mfs, "/test/package.json")
	if err != nil {
		t.Fatalf("Load after invalidate failed: %v", err)
	}
	if pkg.Name != "second" {
		t.Errorf("Expected name 'second' after invalidation, got %q", pkg.Name)
	}
}

func TestMemoryCacheCachesMissingFiles(t *testing.T) {
	mfs := testutil.NewProjectFS(t, "/test", map[string]string{})
	cache := packagejson.NewMemoryCache()

	if _, err := cache.Load(mfs, "/test/package.json"); err == nil {
		t.Fatal("Expected error for missing package.json")
	}

	mfs.AddFile("/test/package.json", `{"name": "late"}`, 0644)
	if _, err := cache.Load(mfs, "/test/package.json"); err == nil {
		t.Error("Expected cached miss until Clear")
	}

	cache.Clear()
	pkg, err := cache.Load(mfs, "/test/package.json")
	if err != nil {
		t.Fatalf("Load after Clear failed: %v", err)
	}
	if pkg.Name != "late" {
		t.Errorf("Expected name 'late', got %q", pkg.Name)
	}
}

func TestMemoryCacheConcurrentLoad(t *testing.T) {
	mfs := testutil.NewProjectFS(t, "/test", map[string]string{
		"package.json": `{"name": "shared"}`,
	})
	cache := packagejson.NewMemoryCache()

	results := make([]*packagejson.PackageJSON, 64)
	var wg sync.WaitGroup
	for i := range results {
		wg.Go(func() {
			pkg, err := cache.Load(mfs, "/test/package.json")
			if err != nil {
				t.Errorf("Load failed: %v", err)
			}
			results[i] = pkg
		})
	}
	wg.Wait()

	for i, pkg := range results {
		if pkg != results[0] {
			t.Fatalf("result %d is a different instance; expected a single parse", i)
		}
	}
}
